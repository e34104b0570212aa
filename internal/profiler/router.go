package profiler

import (
	"fmt"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// OnEvent routes one orchestrator notification to the timers it drives.
// It never panics and never returns an error: anything unexpected is
// logged, counted and dropped.
func (p *Profiler) OnEvent(e models.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.counters.Recovered.Add(1)
			p.log.Warn("Recovered while handling event", map[string]interface{}{
				"event": string(e.Type),
				"panic": fmt.Sprint(r),
			})
		}
	}()

	p.counters.EventsReceived.Add(1)
	outcome := p.route(e)
	p.recorder.IncEvent(string(e.Type), outcome)

	switch outcome {
	case metrics.OutcomeRouted:
		p.counters.EventsRouted.Add(1)
	case metrics.OutcomeIgnored:
		p.counters.EventsIgnored.Add(1)
	case metrics.OutcomeUnknown:
		p.counters.EventsUnknown.Add(1)
	case metrics.OutcomeInvalid:
		p.counters.EventsInvalid.Add(1)
	case metrics.OutcomeUnmatched:
		p.counters.UnmatchedStops.Add(1)
	}
}

// eventMalformed labels input that never decoded into an event
const eventMalformed = "malformed"

// OnMalformed accounts for input that could not be decoded into an event,
// such as a corrupt line of a recorded log. It is counted as an invalid
// event and kept in the diagnostics.
func (p *Profiler) OnMalformed(source string, err error) {
	p.counters.EventsReceived.Add(1)
	p.counters.EventsInvalid.Add(1)
	p.recorder.IncEvent(eventMalformed, metrics.OutcomeInvalid)
	p.diagnostics.Record(report.Diagnostic{
		Time:   p.clock(),
		Event:  eventMalformed,
		Key:    source,
		Reason: err.Error(),
	})
}

func (p *Profiler) route(e models.Event) metrics.Outcome {
	if err := e.Validate(); err != nil {
		p.drop(e, "", err.Error())
		return metrics.OutcomeInvalid
	}
	at := p.instant(e)

	switch e.Type {
	case models.EventDiscoveryStarted:
		p.discovery.StartAt(at)

	case models.EventSessionStarted:
		// module graph resolved
		p.discovery.StopAt(at)
		p.session.StartAt(at)
		p.setProject(e.Project)

	case models.EventSessionEnded:
		p.setProject(e.Project)
		p.setReactor(e.Reactor)
		return p.stopped(e, "session", p.session.StopAt(at))

	case models.EventForkStarted:
		p.fork.StartAt(at)

	case models.EventForkSucceeded, models.EventForkFailed:
		return p.stopped(e, "fork", p.fork.StopAt(at))

	case models.EventForkedProjectStarted:
		p.forkProjects.ModuleStart(*e.Module, at)

	case models.EventForkedProjectSucceeded, models.EventForkedProjectFailed:
		return p.stopped(e, e.Module.ID(), p.forkProjects.ModuleStop(*e.Module, at))

	case models.EventModuleStarted:
		p.modules.ModuleStart(*e.Module, at)

	case models.EventModuleSucceeded, models.EventModuleFailed, models.EventModuleSkipped:
		return p.stopped(e, e.Module.ID(), p.modules.ModuleStop(*e.Module, at))

	case models.EventGoalStarted:
		if e.Goal.InPhase() {
			p.phases.GoalStart(*e.Module, *e.Goal, at)
		} else {
			p.goals.GoalStart(*e.Module, *e.Goal, at)
		}

	case models.EventGoalSucceeded, models.EventGoalFailed, models.EventGoalSkipped:
		var ok bool
		if e.Goal.InPhase() {
			ok = p.phases.GoalStop(*e.Module, *e.Goal, at)
		} else {
			ok = p.goals.GoalStop(*e.Module, *e.Goal, at)
		}
		return p.stopped(e, e.Goal.ID(), ok)

	case models.EventArtifactDownloading, models.EventArtifactDeploying, models.EventArtifactInstalling,
		models.EventMetadataDownloading, models.EventMetadataDeploying, models.EventMetadataInstalling,
		models.EventArtifactDownloaded, models.EventArtifactDeployed, models.EventArtifactInstalled,
		models.EventMetadataDownloaded, models.EventMetadataDeployed, models.EventMetadataInstalled:
		return p.routeTransfer(e, at)

	case models.EventArtifactResolving, models.EventArtifactResolved,
		models.EventArtifactDescriptorInvalid, models.EventArtifactDescriptorMissing,
		models.EventMetadataResolving, models.EventMetadataResolved, models.EventMetadataInvalid:
		// no billable transfer time
		return metrics.OutcomeIgnored

	case models.EventExecutionRequest, models.EventDependencyResolutionRequest, models.EventDependencyResolutionResult:
		p.log.Debug("Informational event", map[string]interface{}{"event": string(e.Type)})
		return metrics.OutcomeIgnored

	default:
		p.log.Debug("Unknown event type", map[string]interface{}{"event": string(e.Type)})
		p.drop(e, "", "unknown event type")
		return metrics.OutcomeUnknown
	}
	return metrics.OutcomeRouted
}

func (p *Profiler) routeTransfer(e models.Event, at time.Time) metrics.Outcome {
	tr, _ := e.Type.Transfer()
	t := p.transfers.Get(tr.Kind, tr.Op)
	if tr.Edge == models.TransferBegin {
		t.Begin(*e.Transfer, at)
		return metrics.OutcomeRouted
	}
	return p.stopped(e, e.Transfer.Key().String(), t.End(*e.Transfer, at))
}

// stopped turns the result of a stop call into an outcome
func (p *Profiler) stopped(e models.Event, key string, ok bool) metrics.Outcome {
	if ok {
		return metrics.OutcomeRouted
	}
	p.log.Debug("Stop without matching start", map[string]interface{}{
		"event": string(e.Type),
		"key":   key,
	})
	p.drop(e, key, "stop without matching start")
	return metrics.OutcomeUnmatched
}

func (p *Profiler) drop(e models.Event, key, reason string) {
	p.diagnostics.Record(report.Diagnostic{
		Time:   p.clock(),
		Event:  string(e.Type),
		Key:    key,
		Reason: reason,
	})
}

func (p *Profiler) setProject(mod *models.Module) {
	if mod == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.project = mod
}

func (p *Profiler) setReactor(modules []models.Module) {
	if len(modules) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reactor = append([]models.Module(nil), modules...)
}
