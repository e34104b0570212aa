package report

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"sync"
	"time"
)

// DefaultDiagnosticsSize is how many dropped events are kept
const DefaultDiagnosticsSize = 50

// Diagnostic describes one event the engine could not time
type Diagnostic struct {
	Time   time.Time `json:"time"`
	Event  string    `json:"event"`
	Key    string    `json:"key,omitempty"`
	Reason string    `json:"reason"`
}

// DiagnosticLog maintains a ring buffer of recent diagnostics (last N)
type DiagnosticLog struct {
	samples []Diagnostic
	maxSize int
	total   uint64
	mu      sync.RWMutex
}

// NewDiagnosticLog creates a diagnostic log with fixed size
func NewDiagnosticLog(maxSize int) *DiagnosticLog {
	if maxSize <= 0 {
		maxSize = DefaultDiagnosticsSize
	}
	return &DiagnosticLog{
		samples: make([]Diagnostic, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a diagnostic (ring buffer)
func (d *DiagnosticLog) Record(sample Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.total++
	if len(d.samples) >= d.maxSize {
		d.samples = d.samples[1:]
	}
	d.samples = append(d.samples, sample)
}

// GetRecent returns recent diagnostics (newest first)
func (d *DiagnosticLog) GetRecent(n int) []Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n <= 0 || n > len(d.samples) {
		n = len(d.samples)
	}

	result := make([]Diagnostic, n)
	for i := 0; i < n; i++ {
		result[i] = d.samples[len(d.samples)-1-i]
	}
	return result
}

// Count returns the number of buffered diagnostics
func (d *DiagnosticLog) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.samples)
}

// Total returns every diagnostic ever recorded, including evicted ones
func (d *DiagnosticLog) Total() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.total
}
