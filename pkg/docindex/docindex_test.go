package docindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestChunkMarkdown(t *testing.T) {
	content := `# Connecting to brokers

This section explains how connections to message brokers are established
and retried when the endpoint is unreachable.

# Sampling

Live payload sampling keeps the most recent messages around so callers
can inspect traffic without subscribing.
`
	chunks := chunkMarkdown(content)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "Connecting to brokers")
	assert.Contains(t, chunks[1], "Sampling")
}

func TestChunkMarkdownDropsShortFragments(t *testing.T) {
	chunks := chunkMarkdown("# Tiny\n\nok\n")
	assert.Empty(t, chunks)
}

func TestLoadDirAndSearch(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"brokers.md": `# MQTT brokers

The MQTT adapter publishes outbound payloads to the broker and subscribes
to an inbound topic for delivering messages to registered handlers.

# Kafka clusters

The Kafka adapter produces to a topic and joins a consumer group for
inbound traffic across partitions.
`,
		"http/rest.md": `# REST polling

The REST adapter polls an HTTP endpoint on a fixed interval and treats a
204 response as an empty poll rather than a failure.
`,
		"notes.txt": `Operational notes: backoff delays grow exponentially with each failed
connection attempt until the configured maximum delay is reached.
`,
		"ignored.go": `package ignored // not indexed`,
	})

	ix := New(zap.NewNop())
	require.NoError(t, ix.LoadDir(dir))
	assert.Equal(t, 4, ix.Len())

	t.Run("finds relevant chunk", func(t *testing.T) {
		results := ix.Search("kafka consumer group partitions", 5)
		require.NotEmpty(t, results)
		assert.Contains(t, results[0].Content, "Kafka")
		assert.Equal(t, "brokers.md", results[0].File)
	})

	t.Run("scores ordered best first", func(t *testing.T) {
		results := ix.Search("adapter broker topic", 5)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("respects top k", func(t *testing.T) {
		results := ix.Search("adapter", 1)
		assert.LessOrEqual(t, len(results), 1)
	})

	t.Run("unrelated query yields nothing", func(t *testing.T) {
		assert.Empty(t, ix.Search("zzz qqq xyzzy", 5))
	})
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(zap.NewNop())
	assert.Empty(t, ix.Search("anything", 5))
}

func TestLoadDirMissing(t *testing.T) {
	ix := New(zap.NewNop())
	assert.Error(t, ix.LoadDir(filepath.Join(t.TempDir(), "absent")))
}
