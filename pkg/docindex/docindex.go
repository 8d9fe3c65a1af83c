// Package docindex builds a searchable index over local documentation.
// Markdown files are chunked by heading and scored against queries with
// TF-IDF weighted cosine similarity.
package docindex

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/errors"
)

const (
	// Chunks shorter than this are noise and are skipped.
	minChunkLen = 50

	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 5

	// Results scoring below this are dropped regardless of top-k.
	minScore = 0.1
)

// Document is one indexed chunk.
type Document struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	File    string `json:"file"`
}

// Result is a scored search hit.
type Result struct {
	Document
	Score float64 `json:"score"`
}

// Index holds the chunked corpus and its term statistics.
type Index struct {
	mu      sync.RWMutex
	docs    []Document
	vectors []map[string]float64
	idf     map[string]float64
	logger  *zap.Logger
}

// New returns an empty index.
func New(logger *zap.Logger) *Index {
	return &Index{
		idf:    make(map[string]float64),
		logger: logger,
	}
}

// LoadDir walks root and indexes every markdown and text file under it.
// The index is rebuilt from scratch on each call.
func (ix *Index) LoadDir(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "docs directory not accessible")
	}
	if !info.IsDir() {
		return errors.Newf(errors.ErrorTypeConfig, "%s is not a directory", root)
	}

	var docs []Document
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			ix.logger.Debug("skipping unreadable file",
				zap.String("path", path), zap.Error(readErr))
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for _, chunk := range chunkMarkdown(string(content)) {
			docs = append(docs, Document{
				Content: chunk,
				Source:  filepath.Base(root),
				File:    rel,
			})
		}
		return nil
	})
	if walkErr != nil {
		return errors.Wrap(walkErr, errors.ErrorTypeInternal, "docs walk failed")
	}

	ix.mu.Lock()
	ix.docs = docs
	ix.rebuildLocked()
	ix.mu.Unlock()

	ix.logger.Info("documentation indexed",
		zap.String("dir", root), zap.Int("chunks", len(docs)))
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search returns the top-k chunks most similar to the query, best first.
// Hits below the relevance floor are dropped.
func (ix *Index) Search(query string, topK int) []Result {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.docs) == 0 {
		return nil
	}

	qvec := ix.vectorizeLocked(tokenize(query))
	if len(qvec) == 0 {
		return nil
	}

	results := make([]Result, 0, topK)
	for i, dvec := range ix.vectors {
		score := cosine(qvec, dvec)
		if score < minScore {
			continue
		}
		results = append(results, Result{Document: ix.docs[i], Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// rebuildLocked recomputes IDF weights and per-document vectors.
func (ix *Index) rebuildLocked() {
	ix.idf = make(map[string]float64)
	ix.vectors = make([]map[string]float64, len(ix.docs))

	docFreq := make(map[string]int)
	tokens := make([][]string, len(ix.docs))
	for i, doc := range ix.docs {
		tokens[i] = tokenize(doc.Content)
		seen := make(map[string]struct{})
		for _, t := range tokens[i] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}

	n := float64(len(ix.docs))
	for term, df := range docFreq {
		ix.idf[term] = math.Log((n+1)/(float64(df)+1)) + 1
	}

	for i := range ix.docs {
		ix.vectors[i] = ix.vectorizeLocked(tokens[i])
	}
}

// vectorizeLocked builds a normalized TF-IDF vector for a token list.
func (ix *Index) vectorizeLocked(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}

	tf := make(map[string]float64)
	for _, t := range tokens {
		tf[t]++
	}

	vec := make(map[string]float64, len(tf))
	var norm float64
	for term, count := range tf {
		idf, ok := ix.idf[term]
		if !ok {
			continue
		}
		w := (count / float64(len(tokens))) * idf
		vec[term] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for term := range vec {
		vec[term] /= norm
	}
	return vec
}

// cosine computes the dot product of two normalized sparse vectors.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	return dot
}

// chunkMarkdown splits content at headings and drops fragments too short
// to be useful.
func chunkMarkdown(content string) []string {
	var chunks []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.Join(current, "\n")
		if len(strings.TrimSpace(chunk)) > minChunkLen {
			chunks = append(chunks, chunk)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return chunks
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
