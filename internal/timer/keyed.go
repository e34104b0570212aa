// Package timer provides the start/stop engines the profiler builds on: a
// keyed timer for spans identified by a comparable key, a sized variant for
// transfers, and a keyless single-span timer.
//
// All timers are safe for concurrent Start/Stop of distinct keys. Readers
// (Entries, Total, ...) take the same lock and return copies, so a report
// generated after the build sees every committed span.
package timer

import (
	"sync"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/observe"
)

// Clock returns the current instant. Tests inject a fake.
type Clock func() time.Time

// Entry is one committed span
type Entry[K comparable] struct {
	Key  K
	Span observe.TimeSpan
}

// Elapsed returns the committed duration
func (e Entry[K]) Elapsed() time.Duration {
	return e.Span.Elapsed()
}

// KeyedTimer maps a key to one time span.
//
// Start on an already open key replaces the open span (last start wins).
// Stop without an open span is a no-op. Committing a key that already has a
// committed span overwrites it but keeps the key's original position.
type KeyedTimer[K comparable] struct {
	mu    sync.Mutex
	now   Clock
	open  map[K]time.Time
	done  map[K]observe.TimeSpan
	order []K
}

// NewKeyed creates a keyed timer. A nil clock means time.Now.
func NewKeyed[K comparable](clock Clock) *KeyedTimer[K] {
	if clock == nil {
		clock = time.Now
	}
	return &KeyedTimer[K]{
		now:  clock,
		open: make(map[K]time.Time),
		done: make(map[K]observe.TimeSpan),
	}
}

// Start opens a span for key now
func (t *KeyedTimer[K]) Start(key K) {
	t.StartAt(key, t.now())
}

// StartAt opens a span for key at the given instant
func (t *KeyedTimer[K]) StartAt(key K, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[key] = at
}

// Stop closes the open span for key now. Returns false when no span was open.
func (t *KeyedTimer[K]) Stop(key K) bool {
	return t.StopAt(key, t.now())
}

// StopAt closes the open span for key at the given instant and commits it.
// Returns false when no span was open.
func (t *KeyedTimer[K]) StopAt(key K, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitLocked(key, at)
}

func (t *KeyedTimer[K]) commitLocked(key K, at time.Time) bool {
	started, ok := t.open[key]
	if !ok {
		return false
	}
	delete(t.open, key)

	span := observe.NewTimeSpan(started)
	if err := span.Complete(at); err != nil {
		return false
	}
	if _, exists := t.done[key]; !exists {
		t.order = append(t.order, key)
	}
	t.done[key] = *span
	return true
}

// IsOpen reports whether key has a span in flight
func (t *KeyedTimer[K]) IsOpen(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.open[key]
	return ok
}

// Elapsed returns the committed duration for key
func (t *KeyedTimer[K]) Elapsed(key K) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.done[key]
	if !ok {
		return 0, false
	}
	return span.Elapsed(), true
}

// Span returns the committed span for key
func (t *KeyedTimer[K]) Span(key K) (observe.TimeSpan, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.done[key]
	return span, ok
}

// Entries returns committed spans in first-commit order
func (t *KeyedTimer[K]) Entries() []Entry[K] {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry[K], 0, len(t.order))
	for _, key := range t.order {
		entries = append(entries, Entry[K]{Key: key, Span: t.done[key]})
	}
	return entries
}

// Filter returns the committed entries matching fn, in first-commit order
func (t *KeyedTimer[K]) Filter(fn func(K) bool) []Entry[K] {
	t.mu.Lock()
	defer t.mu.Unlock()

	var entries []Entry[K]
	for _, key := range t.order {
		if fn(key) {
			entries = append(entries, Entry[K]{Key: key, Span: t.done[key]})
		}
	}
	return entries
}

// Len returns the number of committed keys
func (t *KeyedTimer[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.done)
}

// HasEntries reports whether at least one span has been committed
func (t *KeyedTimer[K]) HasEntries() bool {
	return t.Len() > 0
}

// Total sums the committed durations
func (t *KeyedTimer[K]) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total time.Duration
	for _, span := range t.done {
		total += span.Elapsed()
	}
	return total
}
