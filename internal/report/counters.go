package report

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import "sync/atomic"

// Counters are boring engine counters only.
// Every counter must be explainable by looking at the event stream.
type Counters struct {
	EventsReceived atomic.Uint64 // every OnEvent call
	EventsRouted   atomic.Uint64 // drove at least one timer
	EventsIgnored  atomic.Uint64 // known but not timed (resolution, informational)
	EventsUnknown  atomic.Uint64 // type outside the closed set
	EventsInvalid  atomic.Uint64 // missing payload
	UnmatchedStops atomic.Uint64 // stop without an open span
	Recovered      atomic.Uint64 // panics caught at the engine boundary
}

// NewCounters creates zeroed counters
func NewCounters() *Counters {
	return &Counters{}
}

// Dropped sums the events that did not reach a timer because of their shape
func (c *Counters) Dropped() uint64 {
	return c.EventsUnknown.Load() + c.EventsInvalid.Load() + c.UnmatchedStops.Load()
}

// Snapshot returns current counter values
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"events_received": c.EventsReceived.Load(),
		"events_routed":   c.EventsRouted.Load(),
		"events_ignored":  c.EventsIgnored.Load(),
		"events_unknown":  c.EventsUnknown.Load(),
		"events_invalid":  c.EventsInvalid.Load(),
		"unmatched_stops": c.UnmatchedStops.Load(),
		"recovered":       c.Recovered.Load(),
	}
}
