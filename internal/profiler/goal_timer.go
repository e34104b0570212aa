package profiler

import (
	"fmt"
	"io"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/internal/timer"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// GoalTimer times goals invoked directly on the command line, outside any
// lifecycle phase.
type GoalTimer struct {
	timer *timer.KeyedTimer[models.GoalKey]
}

// NewGoalTimer creates a goal timer
func NewGoalTimer(clock timer.Clock) *GoalTimer {
	return &GoalTimer{timer: timer.NewKeyed[models.GoalKey](clock)}
}

// GoalStart opens the span for the goal on the module
func (g *GoalTimer) GoalStart(mod models.Module, goal models.Goal, at time.Time) {
	g.timer.StartAt(models.NewGoalKey(mod.Key(), goal), at)
}

// GoalStop commits the span for the goal on the module
func (g *GoalTimer) GoalStop(mod models.Module, goal models.Goal, at time.Time) bool {
	return g.timer.StopAt(models.NewGoalKey(mod.Key(), goal), at)
}

// Entries returns committed invocations in completion order
func (g *GoalTimer) Entries() []timer.Entry[models.GoalKey] {
	return g.timer.Entries()
}

// Total sums every committed invocation
func (g *GoalTimer) Total() time.Duration {
	return g.timer.Total()
}

// HasEvents reports whether a direct goal completed
func (g *GoalTimer) HasEvents() bool {
	return g.timer.HasEntries()
}

// Report writes one line per direct goal invocation
func (g *GoalTimer) Report(w io.Writer) {
	for _, e := range g.Entries() {
		fmt.Fprintf(w, "%8d ms : %s (%s)\n", e.Span.ElapsedMillis(), e.Key.Goal, e.Key.Module.ArtifactID)
	}
}

// Document renders the invocations as {goals: [...], time}
func (g *GoalTimer) Document() *report.Document {
	entries := g.Entries()
	goals := make([]*report.Document, 0, len(entries))
	for _, e := range entries {
		goals = append(goals, report.NewDocument().
			Set("goal", e.Key.Goal).
			Set("project", e.Key.Module.String()).
			Set("time", e.Span.ElapsedMillis()))
	}
	return report.NewDocument().
		Set("goals", goals).
		Set("time", g.Total().Milliseconds())
}
