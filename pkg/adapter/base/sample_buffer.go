package base

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// NoDataSentinel is returned by Sample when nothing has been received.
const NoDataSentinel = "No data available"

// DefaultSampleCapacity is the number of payload snippets retained per
// connection.
const DefaultSampleCapacity = 1000

// sampleJoinCount is how many of the most recent entries a sample is
// assembled from.
const sampleJoinCount = 10

// SampleBuffer is a fixed-capacity ring of recently received payload
// snippets, kept for human/agent introspection. Each entry is a timestamped,
// lossily UTF-8-decoded string. Once full, the oldest entry is overwritten;
// this is an introspection aid, not a delivery guarantee.
type SampleBuffer struct {
	mu      sync.Mutex
	entries []string
	next    int // write cursor
	count   int
}

// NewSampleBuffer creates a sample buffer holding up to capacity entries.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultSampleCapacity
	}
	return &SampleBuffer{
		entries: make([]string, capacity),
	}
}

// Add records a payload snippet. Invalid UTF-8 sequences are replaced, never
// surfaced.
func (b *SampleBuffer) Add(data []byte) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	entry := "[" + time.Now().Format(time.RFC3339) + "] " + text

	b.mu.Lock()
	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()
}

// Len returns the number of retained entries.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Snapshot returns the retained entries in insertion order, oldest first.
func (b *SampleBuffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLocked(b.count)
}

// Sample joins the most recent entries with newlines and truncates the
// result to at most n characters, appending an ellipsis marker when
// truncated. Returns NoDataSentinel when the buffer is empty.
func (b *SampleBuffer) Sample(n int) string {
	if n < 0 {
		n = 0
	}
	b.mu.Lock()
	recent := b.lastLocked(sampleJoinCount)
	b.mu.Unlock()

	if len(recent) == 0 {
		return NoDataSentinel
	}

	sample := strings.Join(recent, "\n")
	if len(sample) <= n {
		return sample
	}
	if n <= 3 {
		return sample[:n]
	}
	return sample[:n-3] + "..."
}

// lastLocked returns up to n of the most recent entries, oldest first.
// Caller must hold b.mu.
func (b *SampleBuffer) lastLocked(n int) []string {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.entries)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}
