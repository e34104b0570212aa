package timer

import (
	"sync"
	"time"
)

// SizedEntry is one committed transfer span with its byte size
type SizedEntry[K comparable] struct {
	Entry[K]
	Size int64
}

// SizeKeyedTimer is a KeyedTimer that also records a byte size per key,
// supplied at stop time. Sizes for repeated keys are overwritten, not summed.
type SizeKeyedTimer[K comparable] struct {
	mu    sync.Mutex
	keyed *KeyedTimer[K]
	sizes map[K]int64
}

// NewSizeKeyed creates a sized keyed timer. A nil clock means time.Now.
func NewSizeKeyed[K comparable](clock Clock) *SizeKeyedTimer[K] {
	return &SizeKeyedTimer[K]{
		keyed: NewKeyed[K](clock),
		sizes: make(map[K]int64),
	}
}

// Start opens a span for key now
func (t *SizeKeyedTimer[K]) Start(key K) {
	t.keyed.Start(key)
}

// StartAt opens a span for key at the given instant
func (t *SizeKeyedTimer[K]) StartAt(key K, at time.Time) {
	t.keyed.StartAt(key, at)
}

// Stop closes the open span for key now and records size
func (t *SizeKeyedTimer[K]) Stop(key K, size int64) bool {
	return t.StopAt(key, t.keyed.now(), size)
}

// StopAt closes the open span for key and records size. The size is kept
// only when a span was actually committed.
func (t *SizeKeyedTimer[K]) StopAt(key K, at time.Time, size int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.keyed.StopAt(key, at) {
		return false
	}
	t.sizes[key] = size
	return true
}

// Elapsed returns the committed duration for key
func (t *SizeKeyedTimer[K]) Elapsed(key K) (time.Duration, bool) {
	return t.keyed.Elapsed(key)
}

// Size returns the last recorded size for key
func (t *SizeKeyedTimer[K]) Size(key K) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	size, ok := t.sizes[key]
	return size, ok
}

// Entries returns committed transfers in first-commit order
func (t *SizeKeyedTimer[K]) Entries() []SizedEntry[K] {
	t.mu.Lock()
	defer t.mu.Unlock()

	base := t.keyed.Entries()
	entries := make([]SizedEntry[K], 0, len(base))
	for _, e := range base {
		entries = append(entries, SizedEntry[K]{Entry: e, Size: t.sizes[e.Key]})
	}
	return entries
}

// HasEntries reports whether at least one transfer has been committed
func (t *SizeKeyedTimer[K]) HasEntries() bool {
	return t.keyed.HasEntries()
}

// Total sums the committed durations
func (t *SizeKeyedTimer[K]) Total() time.Duration {
	return t.keyed.Total()
}

// TotalSize sums the last recorded size of every distinct key
func (t *SizeKeyedTimer[K]) TotalSize() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int64
	for _, size := range t.sizes {
		total += size
	}
	return total
}
