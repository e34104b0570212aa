package timer

import (
	"sync"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/observe"
)

// SpanTimer times a single keyless activity (discovery, session, fork).
type SpanTimer struct {
	mu   sync.Mutex
	now  Clock
	span observe.TimeSpan
}

// NewSpan creates a span timer. A nil clock means time.Now.
func NewSpan(clock Clock) *SpanTimer {
	if clock == nil {
		clock = time.Now
	}
	return &SpanTimer{now: clock}
}

// Start begins the span now
func (s *SpanTimer) Start() {
	s.StartAt(s.now())
}

// StartAt begins the span at the given instant. Starting again, whether the
// span is open or completed, begins a fresh span.
func (s *SpanTimer) StartAt(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Start(at)
}

// Stop ends the span now. Returns false if there was nothing to stop.
func (s *SpanTimer) Stop() bool {
	return s.StopAt(s.now())
}

// StopAt ends the span at the given instant. Returns false if the span was
// never started or is already stopped.
func (s *SpanTimer) StopAt(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.span.Complete(at) == nil
}

// Span returns a copy of the current span
func (s *SpanTimer) Span() observe.TimeSpan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.span
}

// Elapsed returns the completed duration
func (s *SpanTimer) Elapsed() (time.Duration, bool) {
	span := s.Span()
	if !span.Completed() {
		return 0, false
	}
	return span.Elapsed(), true
}

// Millis returns the completed duration in milliseconds, 0 when open
func (s *SpanTimer) Millis() int64 {
	return s.Span().ElapsedMillis()
}
