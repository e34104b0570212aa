package profiler

import (
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/internal/timer"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// PhaseTimer is the primary aggregation: goal executions inside a named
// lifecycle phase, queryable per module and per phase.
type PhaseTimer struct {
	timer  *timer.KeyedTimer[models.GoalKey]
	phases *PhaseSet
}

// NewPhaseTimer creates a phase timer feeding discovered phases into phases
func NewPhaseTimer(clock timer.Clock, phases *PhaseSet) *PhaseTimer {
	return &PhaseTimer{
		timer:  timer.NewKeyed[models.GoalKey](clock),
		phases: phases,
	}
}

// GoalStart opens the span for the goal and records its phase
func (p *PhaseTimer) GoalStart(mod models.Module, goal models.Goal, at time.Time) {
	p.phases.Add(goal.Phase)
	p.timer.StartAt(models.NewGoalKey(mod.Key(), goal), at)
}

// GoalStop commits the span for the goal
func (p *PhaseTimer) GoalStop(mod models.Module, goal models.Goal, at time.Time) bool {
	return p.timer.StopAt(models.NewGoalKey(mod.Key(), goal), at)
}

// TimeForModuleAndPhase sums every goal of the module in the phase
func (p *PhaseTimer) TimeForModuleAndPhase(mod models.ModuleKey, phase string) time.Duration {
	return sum(p.timer.Filter(func(k models.GoalKey) bool {
		return k.Module == mod && k.Phase == phase
	}))
}

// HasTimeForModuleAndPhase reports whether the module ran a goal in the phase
func (p *PhaseTimer) HasTimeForModuleAndPhase(mod models.ModuleKey, phase string) bool {
	return len(p.timer.Filter(func(k models.GoalKey) bool {
		return k.Module == mod && k.Phase == phase
	})) > 0
}

// TimeForPhase sums every goal in the phase across all modules
func (p *PhaseTimer) TimeForPhase(phase string) time.Duration {
	return sum(p.GoalsInPhase(phase))
}

// GoalsInPhase returns the goal executions of the phase in completion order
func (p *PhaseTimer) GoalsInPhase(phase string) []timer.Entry[models.GoalKey] {
	return p.timer.Filter(func(k models.GoalKey) bool {
		return k.Phase == phase
	})
}

// GoalsForModule returns every goal execution of one module
func (p *PhaseTimer) GoalsForModule(mod models.ModuleKey) []timer.Entry[models.GoalKey] {
	return p.timer.Filter(func(k models.GoalKey) bool {
		return k.Module == mod
	})
}

// HasEvents reports whether at least one goal has been recorded
func (p *PhaseTimer) HasEvents() bool {
	return p.timer.HasEntries()
}

// Total sums every goal execution
func (p *PhaseTimer) Total() time.Duration {
	return p.timer.Total()
}

// Document renders the build section. phases must already be ordered and
// modules must be in reactor order.
func (p *PhaseTimer) Document(phases []string, modules []models.Module, moduleTimes *ModuleTimer) *report.Document {
	projects := make([]*report.Document, 0, len(modules))
	for _, mod := range modules {
		key := mod.Key()
		perPhase := report.NewDocument()
		for _, phase := range phases {
			if p.HasTimeForModuleAndPhase(key, phase) {
				perPhase.Set(phase, p.TimeForModuleAndPhase(key, phase).Milliseconds())
			}
		}
		project := report.NewDocument().
			Set("project", key.String()).
			Set("name", mod.DisplayName()).
			Set("phases", perPhase)
		if elapsed, ok := moduleTimes.Elapsed(key); ok {
			project.Set("time", elapsed.Milliseconds())
		}
		projects = append(projects, project)
	}

	plugins := report.NewDocument()
	for _, phase := range phases {
		goals := p.GoalsInPhase(phase)
		list := make([]*report.Document, 0, len(goals))
		for _, e := range goals {
			list = append(list, report.NewDocument().
				Set("plugin", e.Key.Goal).
				Set("project", e.Key.Module.String()).
				Set("time", e.Span.ElapsedMillis()))
		}
		plugins.Set(phase, list)
	}

	phaseList := make([]string, len(phases))
	copy(phaseList, phases)

	return report.NewDocument().
		Set("time", p.Total().Milliseconds()).
		Set("phases", phaseList).
		Set("projects", projects).
		Set("plugins", plugins)
}

func sum[K comparable](entries []timer.Entry[K]) time.Duration {
	var total time.Duration
	for _, e := range entries {
		total += e.Elapsed()
	}
	return total
}
