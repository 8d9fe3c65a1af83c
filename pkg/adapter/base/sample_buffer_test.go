package base

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleBufferEmpty(t *testing.T) {
	b := NewSampleBuffer(10)
	assert.Equal(t, NoDataSentinel, b.Sample(256))
	assert.Zero(t, b.Len())
}

func TestSampleBufferCapacityEviction(t *testing.T) {
	b := NewSampleBuffer(5)
	for i := 0; i < 8; i++ {
		b.Add([]byte(fmt.Sprintf("payload-%d", i)))
	}

	assert.Equal(t, 5, b.Len(), "never exceeds capacity")

	entries := b.Snapshot()
	assert.Len(t, entries, 5)
	assert.Contains(t, entries[0], "payload-3", "oldest entries evicted first")
	assert.Contains(t, entries[4], "payload-7")
}

func TestSampleBufferJoinsLastTen(t *testing.T) {
	b := NewSampleBuffer(100)
	for i := 0; i < 15; i++ {
		b.Add([]byte(fmt.Sprintf("msg-%02d", i)))
	}

	sample := b.Sample(10000)
	lines := strings.Split(sample, "\n")
	assert.Len(t, lines, 10)
	assert.Contains(t, lines[0], "msg-05")
	assert.Contains(t, lines[9], "msg-14")
}

func TestSampleBufferTruncation(t *testing.T) {
	b := NewSampleBuffer(10)
	b.Add([]byte(strings.Repeat("x", 200)))

	t.Run("fits", func(t *testing.T) {
		sample := b.Sample(10000)
		assert.False(t, strings.HasSuffix(sample, "..."))
	})

	t.Run("truncated with ellipsis", func(t *testing.T) {
		sample := b.Sample(50)
		assert.Len(t, sample, 50)
		assert.True(t, strings.HasSuffix(sample, "..."))
	})

	t.Run("tiny limit skips ellipsis", func(t *testing.T) {
		sample := b.Sample(3)
		assert.Len(t, sample, 3)
		assert.False(t, strings.HasSuffix(sample, "..."))
	})

	t.Run("zero limit", func(t *testing.T) {
		assert.Empty(t, b.Sample(0))
	})

	t.Run("negative limit clamped", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Empty(t, b.Sample(-1))
		})
	})
}

func TestSampleBufferInvalidUTF8(t *testing.T) {
	b := NewSampleBuffer(10)
	b.Add([]byte{0xff, 0xfe, 'h', 'i'})

	sample := b.Sample(256)
	assert.NotEqual(t, NoDataSentinel, sample)
	assert.Contains(t, sample, "hi")
	assert.True(t, strings.Contains(sample, "�"), "invalid bytes replaced")
}

func TestSampleBufferEntriesTimestamped(t *testing.T) {
	b := NewSampleBuffer(10)
	b.Add([]byte("hello"))

	entries := b.Snapshot()
	assert.Len(t, entries, 1)
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T`, entries[0])
	assert.True(t, strings.HasSuffix(entries[0], "] hello"))
}
