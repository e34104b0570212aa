package profiler

import (
	"fmt"
	"io"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/internal/timer"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// TransferTimer times one (kind, operation) pair of dependency transfers
type TransferTimer struct {
	Kind  models.TransferKind
	Op    models.TransferOp
	title string
	timer *timer.SizeKeyedTimer[models.TransferKey]
}

// NewTransferTimer creates a timer for one kind and operation
func NewTransferTimer(clock timer.Clock, kind models.TransferKind, op models.TransferOp) *TransferTimer {
	return &TransferTimer{
		Kind:  kind,
		Op:    op,
		title: transferTitle(kind, op),
		timer: timer.NewSizeKeyed[models.TransferKey](clock),
	}
}

var transferTitles = map[models.TransferKind]map[models.TransferOp]string{
	models.TransferArtifact: {
		models.TransferInstall:  "Installation summary:",
		models.TransferDownload: "Download summary:",
		models.TransferDeploy:   "Deployment summary:",
	},
	models.TransferMetadata: {
		models.TransferInstall:  "Metadata installation summary:",
		models.TransferDownload: "Metadata download summary:",
		models.TransferDeploy:   "Metadata deployment summary:",
	},
}

func transferTitle(kind models.TransferKind, op models.TransferOp) string {
	return transferTitles[kind][op]
}

// Begin opens the span for the transfer
func (t *TransferTimer) Begin(tr models.Transfer, at time.Time) {
	t.timer.StartAt(tr.Key(), at)
}

// End commits the span and the transferred size
func (t *TransferTimer) End(tr models.Transfer, at time.Time) bool {
	return t.timer.StopAt(tr.Key(), at, tr.Size)
}

// Entries returns committed transfers in completion order
func (t *TransferTimer) Entries() []timer.SizedEntry[models.TransferKey] {
	return t.timer.Entries()
}

// HasEvents reports whether a transfer completed
func (t *TransferTimer) HasEvents() bool {
	return t.timer.HasEntries()
}

// Total sums the transfer durations
func (t *TransferTimer) Total() time.Duration {
	return t.timer.Total()
}

// TotalSize sums the last size of every distinct transfer
func (t *TransferTimer) TotalSize() int64 {
	return t.timer.TotalSize()
}

// Report writes the summary: one line per item, then the totals
func (t *TransferTimer) Report(w io.Writer) {
	fmt.Fprintln(w, t.title)
	for _, e := range t.Entries() {
		fmt.Fprintf(w, "%8d ms : %s\n", e.Span.ElapsedMillis(), e.Key)
	}
	fmt.Fprintf(w, "%8d ms, %d bytes\n", t.Total().Milliseconds(), t.TotalSize())
	fmt.Fprintln(w, separator)
}

// Document renders the transfers as {artifacts: [...], time, size}
func (t *TransferTimer) Document() *report.Document {
	entries := t.Entries()
	items := make([]*report.Document, 0, len(entries))
	for _, e := range entries {
		items = append(items, report.NewDocument().
			Set("artifact", e.Key.String()).
			Set("time", e.Span.ElapsedMillis()).
			Set("size", e.Size))
	}
	return report.NewDocument().
		Set("artifacts", items).
		Set("time", t.Total().Milliseconds()).
		Set("size", t.TotalSize())
}

// TransferTimers holds the six (artifact | metadata) x (download | deploy |
// install) timers.
type TransferTimers struct {
	timers map[models.TransferKind]map[models.TransferOp]*TransferTimer
}

// transferOrder is the report order: install, download, deploy per kind
var transferOrder = []models.TransferOp{models.TransferInstall, models.TransferDownload, models.TransferDeploy}

// NewTransferTimers creates all six timers
func NewTransferTimers(clock timer.Clock) *TransferTimers {
	t := &TransferTimers{timers: make(map[models.TransferKind]map[models.TransferOp]*TransferTimer)}
	for _, kind := range []models.TransferKind{models.TransferArtifact, models.TransferMetadata} {
		t.timers[kind] = make(map[models.TransferOp]*TransferTimer)
		for _, op := range transferOrder {
			t.timers[kind][op] = NewTransferTimer(clock, kind, op)
		}
	}
	return t
}

// Get returns the timer for kind and op
func (t *TransferTimers) Get(kind models.TransferKind, op models.TransferOp) *TransferTimer {
	return t.timers[kind][op]
}

// All returns every timer in report order, artifacts before metadata
func (t *TransferTimers) All() []*TransferTimer {
	out := make([]*TransferTimer, 0, 6)
	for _, kind := range []models.TransferKind{models.TransferArtifact, models.TransferMetadata} {
		for _, op := range transferOrder {
			out = append(out, t.timers[kind][op])
		}
	}
	return out
}

// Count returns the number of committed transfers across all timers
func (t *TransferTimers) Count() int {
	n := 0
	for _, tt := range t.All() {
		n += len(tt.Entries())
	}
	return n
}
