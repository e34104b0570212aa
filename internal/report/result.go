package report

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

// Result is immutable build-level truth. Set once at finish, never changed.
type Result struct {
	// Identity
	BuildID string `json:"build_id"`
	Project string `json:"project,omitempty"` // group:artifact:version of the top level project

	// Timing (immutable)
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ms"`

	// Shape of the build
	Modules   int `json:"modules"`
	Phases    int `json:"phases"`
	Goals     int `json:"goals"`
	Transfers int `json:"transfers"`

	// Events the engine dropped (unknown, invalid or unmatched)
	Ignored uint64 `json:"ignored_events"`
}

// NewResult creates an immutable result with a fresh build id
func NewResult(project string, startTime, endTime time.Time) *Result {
	duration := time.Duration(0)
	if !startTime.IsZero() && endTime.After(startTime) {
		duration = endTime.Sub(startTime)
	}
	return &Result{
		BuildID:   uuid.NewString(),
		Project:   project,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
	}
}

// LogSummary emits the one-line summary ops grep for
func (r *Result) LogSummary(log *logging.Logger) {
	log.Info("BUILD PROFILED", map[string]interface{}{
		"build_id":  r.BuildID,
		"project":   r.Project,
		"runtime":   r.Duration.Milliseconds(),
		"modules":   r.Modules,
		"phases":    r.Phases,
		"goals":     r.Goals,
		"transfers": r.Transfers,
		"ignored":   r.Ignored,
	})
}
