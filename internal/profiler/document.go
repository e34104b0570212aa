package profiler

import (
	"fmt"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// DefaultIgnoreFields are pruned from the document before it leaves the
// machine. They are the bulky per-item listings.
var DefaultIgnoreFields = []string{
	"download",
	"metadata",
	"build.plugins",
	"build.projects",
	"install",
	"fork-project",
	"fork-time",
	"goals",
}

// Document assembles the structured profiling result. On failure the
// sections assembled so far are returned with ErrIncompleteReport.
func (p *Profiler) Document() (doc *report.Document, err error) {
	doc = report.NewDocument()
	defer func() {
		if r := recover(); r != nil {
			p.counters.Recovered.Add(1)
			err = fmt.Errorf("%w: %v", ErrIncompleteReport, r)
			p.log.Warn("Document assembly failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	phases := p.Phases()

	doc.Set("discovery-time", p.discovery.Millis())
	doc.Set("session-time", p.session.Millis())
	doc.Set("build", p.phases.Document(phases, p.Reactor(), p.modules))
	doc.Set("goals", p.goals.Document())
	doc.Set("install", p.transfers.Get(models.TransferArtifact, models.TransferInstall).Document())
	doc.Set("download", p.transfers.Get(models.TransferArtifact, models.TransferDownload).Document())
	doc.Set("deploy", p.transfers.Get(models.TransferArtifact, models.TransferDeploy).Document())
	doc.Set("metadata", report.NewDocument().
		Set("install", p.transfers.Get(models.TransferMetadata, models.TransferInstall).Document()).
		Set("download", p.transfers.Get(models.TransferMetadata, models.TransferDownload).Document()).
		Set("deployment", p.transfers.Get(models.TransferMetadata, models.TransferDeploy).Document()))
	doc.Set("fork-time", p.fork.Millis())
	doc.Set("fork-project", p.forkProjects.Document())
	return doc, nil
}
