package profiler

import (
	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// Telemetry builds the payload handed to external sinks: the pruned profile,
// the project identity, host and source control details, and the date in
// epoch milliseconds. system and scm are opaque and may be nil.
func (p *Profiler) Telemetry(ignore []string, system, scm interface{}) (*report.Document, error) {
	profile, err := p.Document()
	profiling := profile.Clone().Prune(ignore...)

	payload := report.NewDocument().
		Set("id", p.Finish().BuildID).
		Set("profiling", profiling)
	if mod := p.Project(); mod != nil {
		payload.Set("project", projectDocument(*mod))
	}
	if system != nil {
		payload.Set("system", system)
	}
	if scm != nil {
		payload.Set("scm", scm)
	}
	payload.Set("date", p.clock().UnixMilli())
	return payload, err
}

func projectDocument(mod models.Module) *report.Document {
	doc := report.NewDocument().
		Set("id", mod.ID()).
		Set("groupId", mod.GroupID).
		Set("artifactId", mod.ArtifactID).
		Set("version", mod.Version)
	if mod.Parent != nil {
		doc.Set("parent", report.NewDocument().
			Set("groupId", mod.Parent.GroupID).
			Set("artifactId", mod.Parent.ArtifactID).
			Set("version", mod.Parent.Version))
	}
	return doc
}
