package models

import "fmt"

// Goal is one plugin goal execution
type Goal struct {
	GroupID     string `json:"group_id" yaml:"group_id"`
	ArtifactID  string `json:"artifact_id" yaml:"artifact_id"`
	Version     string `json:"version" yaml:"version"`
	Goal        string `json:"goal" yaml:"goal"`
	ExecutionID string `json:"execution_id,omitempty" yaml:"execution_id,omitempty"`
	Phase       string `json:"phase,omitempty" yaml:"phase,omitempty"` // empty when invoked directly
}

// ID uniquely names the plugin, goal and execution id
func (g Goal) ID() string {
	id := fmt.Sprintf("%s:%s:%s:%s", g.GroupID, g.ArtifactID, g.Version, g.Goal)
	if g.ExecutionID != "" {
		id += " (" + g.ExecutionID + ")"
	}
	return id
}

// InPhase reports whether the goal runs as part of a lifecycle phase
func (g Goal) InPhase() bool {
	return g.Phase != ""
}

// GoalKey identifies one goal invocation for one module.
// Phase is empty for goals invoked directly.
type GoalKey struct {
	Module ModuleKey
	Phase  string
	Goal   string
}

// NewGoalKey derives the key for a goal run on a module
func NewGoalKey(m ModuleKey, g Goal) GoalKey {
	return GoalKey{Module: m, Phase: g.Phase, Goal: g.ID()}
}

// PhaseKey identifies one lifecycle phase executed for one module
type PhaseKey struct {
	Module ModuleKey
	Phase  string
}

// PhaseKey returns the phase part of the goal key
func (k GoalKey) PhaseKey() PhaseKey {
	return PhaseKey{Module: k.Module, Phase: k.Phase}
}
