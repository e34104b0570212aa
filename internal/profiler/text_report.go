package profiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	separator = "------------------------------------------------------------------------"
	banner    = "--                  Build Time Profiler Summary                       --"
)

// ErrIncompleteReport is returned when report assembly failed part way.
// Whatever was assembled before the failure is still usable.
var ErrIncompleteReport = errors.New("incomplete report")

// WriteReport writes the human readable summary. Sections without recorded
// events are omitted.
func (p *Profiler) WriteReport(w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.counters.Recovered.Add(1)
			err = fmt.Errorf("%w: %v", ErrIncompleteReport, r)
			p.log.Warn("Report assembly failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	phases := p.Phases()

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, separator)

	discovery, hasDiscovery := p.discovery.Elapsed()
	session, hasSession := p.session.Elapsed()
	if hasDiscovery {
		fmt.Fprintf(w, "Project discovery time: %d ms\n", discovery.Milliseconds())
	}
	if hasSession {
		fmt.Fprintf(w, "Session time: %d ms\n", session.Milliseconds())
	}
	if hasDiscovery || hasSession {
		fmt.Fprintln(w, separator)
	}

	if p.phases.HasEvents() {
		fmt.Fprintln(w, "Project Build Time (reactor order):")
		fmt.Fprintln(w)
		for _, mod := range p.Reactor() {
			key := mod.Key()
			fmt.Fprintf(w, "%s:\n", mod.DisplayName())
			for _, phase := range phases {
				if !p.phases.HasTimeForModuleAndPhase(key, phase) {
					continue
				}
				fmt.Fprintf(w, "    %8d ms : %s\n", p.phases.TimeForModuleAndPhase(key, phase).Milliseconds(), phase)
			}
		}
		fmt.Fprintln(w, separator)

		fmt.Fprintln(w, "Lifecycle Phase summary:")
		fmt.Fprintln(w)
		for _, phase := range phases {
			fmt.Fprintf(w, "%8d ms : %s\n", p.phases.TimeForPhase(phase).Milliseconds(), phase)
		}
		fmt.Fprintln(w, separator)

		fmt.Fprintln(w, "Plugins in lifecycle Phases:")
		fmt.Fprintln(w)
		for _, phase := range phases {
			fmt.Fprintf(w, "%s:\n", phase)
			for _, e := range p.phases.GoalsInPhase(phase) {
				fmt.Fprintf(w, "%8d ms: %s\n", e.Span.ElapsedMillis(), e.Key.Goal)
			}
		}
		fmt.Fprintln(w, separator)
	}

	if p.goals.HasEvents() {
		fmt.Fprintln(w, "Plugins directly called via goals:")
		fmt.Fprintln(w)
		p.goals.Report(w)
		fmt.Fprintln(w, separator)
	}

	for _, t := range p.transfers.All() {
		if t.HasEvents() {
			t.Report(w)
		}
	}

	if d, ok := p.fork.Elapsed(); ok {
		fmt.Fprintf(w, "Fork time: %d ms\n", d.Milliseconds())
		fmt.Fprintln(w, separator)
	}
	if p.forkProjects.HasEvents() {
		fmt.Fprintln(w, "Forked projects:")
		fmt.Fprintln(w)
		p.forkProjects.Report(w)
		fmt.Fprintln(w, separator)
	}
	return nil
}

// Report returns the summary as a string
func (p *Profiler) Report() (string, error) {
	var buf bytes.Buffer
	err := p.WriteReport(&buf)
	return buf.String(), err
}
