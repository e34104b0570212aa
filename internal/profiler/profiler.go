// Package profiler turns the orchestrator's lifecycle notifications into a
// time breakdown per module, phase, goal and dependency transfer.
//
// A Profiler is created once per build. OnEvent may be called concurrently
// while the build runs; Finish, Report and Document are called after the
// session ended.
package profiler

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"sync"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/internal/timer"
	"github.com/psantana5/buildtime-profiler/pkg/logging"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// Options configures a Profiler. Zero values get defaults.
type Options struct {
	Clock           timer.Clock
	Logger          *logging.Logger
	Recorder        metrics.Recorder
	Orderer         *PhaseOrderer
	DiagnosticsSize int
}

// Profiler owns every timer of one build
type Profiler struct {
	log      *logging.Logger
	clock    timer.Clock
	recorder metrics.Recorder
	orderer  *PhaseOrderer

	counters    *report.Counters
	diagnostics *report.DiagnosticLog

	discovery *timer.SpanTimer
	session   *timer.SpanTimer
	fork      *timer.SpanTimer

	modules      *ModuleTimer
	forkProjects *ModuleTimer
	goals        *GoalTimer
	phaseSet     *PhaseSet
	phases       *PhaseTimer
	transfers    *TransferTimers

	mu      sync.Mutex
	project *models.Module
	reactor []models.Module

	finishOnce sync.Once
	ordered    []string
	result     *report.Result
}

// New creates a profiler with all timers in place
func New(opts Options) *Profiler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Orderer == nil {
		opts.Orderer = DefaultPhaseOrderer()
	}

	phaseSet := NewPhaseSet()
	return &Profiler{
		log:          opts.Logger.WithComponent("profiler"),
		clock:        opts.Clock,
		recorder:     opts.Recorder,
		orderer:      opts.Orderer,
		counters:     report.NewCounters(),
		diagnostics:  report.NewDiagnosticLog(opts.DiagnosticsSize),
		discovery:    timer.NewSpan(opts.Clock),
		session:      timer.NewSpan(opts.Clock),
		fork:         timer.NewSpan(opts.Clock),
		modules:      NewModuleTimer(opts.Clock),
		forkProjects: NewModuleTimer(opts.Clock),
		goals:        NewGoalTimer(opts.Clock),
		phaseSet:     phaseSet,
		phases:       NewPhaseTimer(opts.Clock, phaseSet),
		transfers:    NewTransferTimers(opts.Clock),
	}
}

// Finish orders the discovered phases, freezes the build result and pushes
// the aggregates to the metrics recorder. Only the first call does work.
func (p *Profiler) Finish() *report.Result {
	p.finishOnce.Do(func() {
		p.ordered = p.orderer.Order(p.phaseSet.Phases())

		session := p.session.Span()
		project := ""
		if mod := p.Project(); mod != nil {
			project = mod.ID()
		}
		result := report.NewResult(project, session.StartedAt, session.CompletedAt)
		result.Modules = len(p.modules.Entries())
		result.Phases = len(p.ordered)
		result.Goals = len(p.phases.timer.Entries()) + len(p.goals.Entries())
		result.Transfers = p.transfers.Count()
		result.Ignored = p.counters.Dropped()
		p.result = result

		p.recordAggregates()
		result.LogSummary(p.log)
	})
	return p.result
}

func (p *Profiler) recordAggregates() {
	for name, span := range map[string]*timer.SpanTimer{"discovery": p.discovery, "session": p.session, "fork": p.fork} {
		if d, ok := span.Elapsed(); ok {
			p.recorder.ObserveSpan(name, d)
		}
	}
	for _, e := range p.modules.Entries() {
		p.recorder.SetModuleDuration(e.Key.String(), e.Elapsed())
	}
	for _, phase := range p.ordered {
		p.recorder.SetPhaseDuration(phase, p.phases.TimeForPhase(phase))
		totals := make(map[string]time.Duration)
		for _, e := range p.phases.GoalsInPhase(phase) {
			totals[e.Key.Goal] += e.Elapsed()
		}
		for goal, d := range totals {
			p.recorder.SetGoalDuration(phase, goal, d)
		}
	}
	for _, t := range p.transfers.All() {
		if t.HasEvents() {
			p.recorder.SetTransferTotals(string(t.Kind), string(t.Op), t.Total(), t.TotalSize())
		}
	}
}

// Phases returns the discovered phases, canonically ordered once Finish ran
func (p *Profiler) Phases() []string {
	p.Finish()
	out := make([]string, len(p.ordered))
	copy(out, p.ordered)
	return out
}

// Project returns the top level project reported by the session, if any
func (p *Profiler) Project() *models.Module {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.project
}

// Reactor returns modules in build order: the order the session reported
// or, failing that, the order modules started.
func (p *Profiler) Reactor() []models.Module {
	p.mu.Lock()
	reactor := make([]models.Module, len(p.reactor))
	copy(reactor, p.reactor)
	p.mu.Unlock()

	if len(reactor) > 0 {
		return reactor
	}
	return p.modules.Seen()
}

// Counters returns the engine counters
func (p *Profiler) Counters() *report.Counters {
	return p.counters
}

// Diagnostics returns the ring buffer of events the engine dropped
func (p *Profiler) Diagnostics() *report.DiagnosticLog {
	return p.diagnostics
}

// PhaseTimer exposes the phase aggregation for callers rendering their own views
func (p *Profiler) PhaseTimer() *PhaseTimer {
	return p.phases
}

// Modules exposes the main reactor module timer
func (p *Profiler) Modules() *ModuleTimer {
	return p.modules
}

// Transfers exposes the six transfer timers
func (p *Profiler) Transfers() *TransferTimers {
	return p.transfers
}

// instant returns the event timestamp, or now when the event carries none
func (p *Profiler) instant(e models.Event) time.Time {
	if !e.Timestamp.IsZero() {
		return e.Timestamp
	}
	return p.clock()
}
