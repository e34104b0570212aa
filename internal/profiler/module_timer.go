package profiler

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/internal/timer"
	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// ModuleTimer times whole modules. The profiler keeps two: one for the main
// reactor and one for modules built inside a forked lifecycle.
type ModuleTimer struct {
	timer *timer.KeyedTimer[models.ModuleKey]

	mu    sync.Mutex
	names map[models.ModuleKey]string
	seen  []models.Module // first start order
}

// NewModuleTimer creates a module timer
func NewModuleTimer(clock timer.Clock) *ModuleTimer {
	return &ModuleTimer{
		timer: timer.NewKeyed[models.ModuleKey](clock),
		names: make(map[models.ModuleKey]string),
	}
}

// ModuleStart opens the span for the module
func (m *ModuleTimer) ModuleStart(mod models.Module, at time.Time) {
	key := mod.Key()

	m.mu.Lock()
	if _, ok := m.names[key]; !ok {
		m.seen = append(m.seen, mod)
	}
	m.names[key] = mod.DisplayName()
	m.mu.Unlock()

	m.timer.StartAt(key, at)
}

// ModuleStop commits the span for the module. Returns false when the module
// was never started.
func (m *ModuleTimer) ModuleStop(mod models.Module, at time.Time) bool {
	return m.timer.StopAt(mod.Key(), at)
}

// Elapsed returns the committed time of one module
func (m *ModuleTimer) Elapsed(key models.ModuleKey) (time.Duration, bool) {
	return m.timer.Elapsed(key)
}

// Entries returns committed modules in completion order
func (m *ModuleTimer) Entries() []timer.Entry[models.ModuleKey] {
	return m.timer.Entries()
}

// Total sums every committed module
func (m *ModuleTimer) Total() time.Duration {
	return m.timer.Total()
}

// HasEvents reports whether a module completed
func (m *ModuleTimer) HasEvents() bool {
	return m.timer.HasEntries()
}

// Seen returns modules in first start order
func (m *ModuleTimer) Seen() []models.Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Module, len(m.seen))
	copy(out, m.seen)
	return out
}

// Name returns the display name recorded for key, or the coordinate
func (m *ModuleTimer) Name(key models.ModuleKey) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.names[key]; ok && name != "" {
		return name
	}
	return key.String()
}

// Report writes one line per module and the total
func (m *ModuleTimer) Report(w io.Writer) {
	for _, e := range m.Entries() {
		fmt.Fprintf(w, "%8d ms : %s\n", e.Span.ElapsedMillis(), m.Name(e.Key))
	}
	fmt.Fprintf(w, "%8d ms total\n", m.Total().Milliseconds())
}

// Document renders the modules as {projects: [...], time}
func (m *ModuleTimer) Document() *report.Document {
	projects := make([]*report.Document, 0, m.timer.Len())
	for _, e := range m.Entries() {
		projects = append(projects, report.NewDocument().
			Set("project", e.Key.String()).
			Set("name", m.Name(e.Key)).
			Set("time", e.Span.ElapsedMillis()))
	}
	return report.NewDocument().
		Set("projects", projects).
		Set("time", m.Total().Milliseconds())
}
