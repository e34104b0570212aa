package observe

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"errors"
	"time"
)

// ErrInvalidState is returned when a span is completed before it was
// started, or completed twice.
var ErrInvalidState = errors.New("invalid span state")

// TimeSpan records start/stop instants only
type TimeSpan struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewTimeSpan creates a span started at the given instant
func NewTimeSpan(at time.Time) *TimeSpan {
	return &TimeSpan{
		StartedAt: at,
	}
}

// Start (re)starts the span at the given instant, discarding any stop.
func (t *TimeSpan) Start(at time.Time) {
	t.StartedAt = at
	t.CompletedAt = time.Time{}
}

// Complete records the stop instant. A stop earlier than the start is
// clamped to the start so a completed span never has negative length.
func (t *TimeSpan) Complete(at time.Time) error {
	if t.StartedAt.IsZero() || !t.CompletedAt.IsZero() {
		return ErrInvalidState
	}
	if at.Before(t.StartedAt) {
		at = t.StartedAt
	}
	t.CompletedAt = at
	return nil
}

// Started reports whether Start was recorded
func (t TimeSpan) Started() bool {
	return !t.StartedAt.IsZero()
}

// Completed reports whether the span has been stopped
func (t TimeSpan) Completed() bool {
	return !t.StartedAt.IsZero() && !t.CompletedAt.IsZero()
}

// Open reports whether the span is started but not yet stopped
func (t TimeSpan) Open() bool {
	return t.Started() && t.CompletedAt.IsZero()
}

// Elapsed returns stop - start. An open span contributes nothing.
func (t TimeSpan) Elapsed() time.Duration {
	if !t.Completed() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// ElapsedMillis returns Elapsed in whole milliseconds
func (t TimeSpan) ElapsedMillis() int64 {
	return t.Elapsed().Milliseconds()
}
