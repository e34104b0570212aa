package models

import "fmt"

// ModuleKey is the value identity of a build module
type ModuleKey struct {
	GroupID    string `json:"group_id" yaml:"group_id"`
	ArtifactID string `json:"artifact_id" yaml:"artifact_id"`
	Version    string `json:"version" yaml:"version"`
}

// String renders the key as group:artifact:version
func (k ModuleKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.GroupID, k.ArtifactID, k.Version)
}

// IsZero reports whether the key carries no coordinate at all
func (k ModuleKey) IsZero() bool {
	return k.GroupID == "" && k.ArtifactID == "" && k.Version == ""
}

// Module is a buildable unit as reported by the orchestrator
type Module struct {
	GroupID    string  `json:"group_id" yaml:"group_id"`
	ArtifactID string  `json:"artifact_id" yaml:"artifact_id"`
	Version    string  `json:"version" yaml:"version"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"` // display name, falls back to the artifact id
	Parent     *Module `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Key returns the module identity
func (m Module) Key() ModuleKey {
	return ModuleKey{GroupID: m.GroupID, ArtifactID: m.ArtifactID, Version: m.Version}
}

// DisplayName returns Name, or the artifact id when no name was reported
func (m Module) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ArtifactID
}

// ID renders the module the way the orchestrator identifies it
func (m Module) ID() string {
	return m.Key().String()
}
