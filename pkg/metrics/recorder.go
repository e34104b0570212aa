// Package metrics exposes profiler aggregates as Prometheus metrics.
//
// The engine talks to a Recorder. NoopRecorder is the default; the
// PrometheusRecorder backs the /metrics endpoint and the textfile export.
package metrics

import "time"

// Outcome classifies what the engine did with an event
type Outcome string

const (
	OutcomeRouted    Outcome = "routed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeUnmatched Outcome = "unmatched"
)

// Recorder receives live event counts and the final aggregates.
// Implementations must be safe for concurrent use.
type Recorder interface {
	IncEvent(eventType string, outcome Outcome)
	ObserveSpan(span string, d time.Duration) // discovery, session, fork
	SetModuleDuration(module string, d time.Duration)
	SetPhaseDuration(phase string, d time.Duration)
	SetGoalDuration(phase, goal string, d time.Duration)
	SetTransferTotals(kind, op string, d time.Duration, bytes int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncEvent(string, Outcome)                               {}
func (NoopRecorder) ObserveSpan(string, time.Duration)                      {}
func (NoopRecorder) SetModuleDuration(string, time.Duration)                {}
func (NoopRecorder) SetPhaseDuration(string, time.Duration)                 {}
func (NoopRecorder) SetGoalDuration(string, string, time.Duration)          {}
func (NoopRecorder) SetTransferTotals(string, string, time.Duration, int64) {}
