package profiler

import (
	"github.com/psantana5/buildtime-profiler/internal/observe"
	"github.com/psantana5/buildtime-profiler/pkg/models"
	"github.com/psantana5/buildtime-profiler/pkg/tracing"
)

// SpanRecords flattens the recorded spans into a trace: the session as
// root, discovery, modules and transfers below it, goals below their
// module. Open spans are left out. Without a completed session there is
// no trace.
func (p *Profiler) SpanRecords() []tracing.SpanRecord {
	session := p.session.Span()
	if !session.Completed() {
		return nil
	}

	records := []tracing.SpanRecord{record("session", session, -1, nil)}
	if mod := p.Project(); mod != nil {
		records[0].Attributes = map[string]string{"project": mod.ID()}
	}

	if discovery := p.discovery.Span(); discovery.Completed() {
		records = append(records, record("discovery", discovery, 0, nil))
	}

	moduleIndex := make(map[models.ModuleKey]int)
	for _, e := range p.modules.Entries() {
		moduleIndex[e.Key] = len(records)
		records = append(records, record(p.modules.Name(e.Key), e.Span, 0, map[string]string{
			"module": e.Key.String(),
		}))
	}

	addGoal := func(key models.GoalKey, span observe.TimeSpan) {
		parent, ok := moduleIndex[key.Module]
		if !ok {
			parent = 0
		}
		attrs := map[string]string{"module": key.Module.String(), "goal": key.Goal}
		if key.Phase != "" {
			attrs["phase"] = key.Phase
		}
		records = append(records, record(key.Goal, span, parent, attrs))
	}
	for _, e := range p.phases.timer.Entries() {
		addGoal(e.Key, e.Span)
	}
	for _, e := range p.goals.Entries() {
		addGoal(e.Key, e.Span)
	}

	for _, t := range p.transfers.All() {
		for _, e := range t.Entries() {
			records = append(records, record(string(t.Op)+" "+e.Key.Coordinate, e.Span, 0, map[string]string{
				"kind":       string(t.Kind),
				"op":         string(t.Op),
				"repository": e.Key.Repository,
			}))
		}
	}

	if fork := p.fork.Span(); fork.Completed() {
		records = append(records, record("fork", fork, 0, nil))
	}
	return records
}

func record(name string, span observe.TimeSpan, parent int, attrs map[string]string) tracing.SpanRecord {
	return tracing.SpanRecord{
		Name:       name,
		Start:      span.StartedAt,
		End:        span.CompletedAt,
		Parent:     parent,
		Attributes: attrs,
	}
}
