package profiler

import (
	"sync"

	"github.com/psantana5/buildtime-profiler/pkg/models"
)

// PhaseSet collects phase names in first-seen order. Concurrent module
// builders add to it, so arrival order is not meaningful until the set is
// passed through a PhaseOrderer.
type PhaseSet struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	phases []string
}

// NewPhaseSet creates an empty phase set
func NewPhaseSet() *PhaseSet {
	return &PhaseSet{seen: make(map[string]struct{})}
}

// Add records phase once. Returns true the first time a phase is seen.
func (s *PhaseSet) Add(phase string) bool {
	if phase == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[phase]; ok {
		return false
	}
	s.seen[phase] = struct{}{}
	s.phases = append(s.phases, phase)
	return true
}

// Phases returns the phases in first-seen order
func (s *PhaseSet) Phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.phases))
	copy(out, s.phases)
	return out
}

// Len returns the number of distinct phases
func (s *PhaseSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.phases)
}

// PhaseOrderer sorts discovered phases into a canonical lifecycle order.
// Phases unknown to the lifecycle keep their relative order after the known
// ones. Ordering never drops or invents a phase.
type PhaseOrderer struct {
	canonical []string
	index     map[string]int
}

// NewPhaseOrderer creates an orderer for the given canonical sequence
func NewPhaseOrderer(canonical []string) *PhaseOrderer {
	o := &PhaseOrderer{index: make(map[string]int, len(canonical))}
	for _, phase := range canonical {
		if _, dup := o.index[phase]; dup {
			continue
		}
		o.index[phase] = len(o.canonical)
		o.canonical = append(o.canonical, phase)
	}
	return o
}

// DefaultPhaseOrderer orders by the clean, default and site lifecycles
func DefaultPhaseOrderer() *PhaseOrderer {
	return NewPhaseOrderer(models.CanonicalLifecycle)
}

// Order returns discovered reordered canonically. The input is not modified
// and duplicates collapse onto their first occurrence.
func (o *PhaseOrderer) Order(discovered []string) []string {
	present := make([]bool, len(o.canonical))
	var unknown []string
	seenUnknown := make(map[string]struct{})

	for _, phase := range discovered {
		if i, ok := o.index[phase]; ok {
			present[i] = true
			continue
		}
		if _, dup := seenUnknown[phase]; dup {
			continue
		}
		seenUnknown[phase] = struct{}{}
		unknown = append(unknown, phase)
	}

	ordered := make([]string, 0, len(discovered))
	for i, ok := range present {
		if ok {
			ordered = append(ordered, o.canonical[i])
		}
	}
	return append(ordered, unknown...)
}
