package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned when an event lacks the payload its type needs
var ErrInvalidEvent = errors.New("invalid event")

// EventType is the closed set of notifications the orchestrator emits
type EventType string

const (
	// Session
	EventDiscoveryStarted EventType = "discovery_started"
	EventSessionStarted   EventType = "session_started"
	EventSessionEnded     EventType = "session_ended"

	// Forked lifecycle executions
	EventForkStarted   EventType = "fork_started"
	EventForkSucceeded EventType = "fork_succeeded"
	EventForkFailed    EventType = "fork_failed"

	EventForkedProjectStarted   EventType = "forked_project_started"
	EventForkedProjectSucceeded EventType = "forked_project_succeeded"
	EventForkedProjectFailed    EventType = "forked_project_failed"

	// Modules
	EventModuleStarted   EventType = "module_started"
	EventModuleSucceeded EventType = "module_succeeded"
	EventModuleFailed    EventType = "module_failed"
	EventModuleSkipped   EventType = "module_skipped"

	// Goals
	EventGoalStarted   EventType = "goal_started"
	EventGoalSucceeded EventType = "goal_succeeded"
	EventGoalFailed    EventType = "goal_failed"
	EventGoalSkipped   EventType = "goal_skipped"

	// Artifact transfers
	EventArtifactDownloading EventType = "artifact_downloading"
	EventArtifactDownloaded  EventType = "artifact_downloaded"
	EventArtifactDeploying   EventType = "artifact_deploying"
	EventArtifactDeployed    EventType = "artifact_deployed"
	EventArtifactInstalling  EventType = "artifact_installing"
	EventArtifactInstalled   EventType = "artifact_installed"

	// Metadata transfers
	EventMetadataDownloading EventType = "metadata_downloading"
	EventMetadataDownloaded  EventType = "metadata_downloaded"
	EventMetadataDeploying   EventType = "metadata_deploying"
	EventMetadataDeployed    EventType = "metadata_deployed"
	EventMetadataInstalling  EventType = "metadata_installing"
	EventMetadataInstalled   EventType = "metadata_installed"

	// Transfer notifications that carry no billable time
	EventArtifactResolving         EventType = "artifact_resolving"
	EventArtifactResolved          EventType = "artifact_resolved"
	EventArtifactDescriptorInvalid EventType = "artifact_descriptor_invalid"
	EventArtifactDescriptorMissing EventType = "artifact_descriptor_missing"
	EventMetadataResolving         EventType = "metadata_resolving"
	EventMetadataResolved          EventType = "metadata_resolved"
	EventMetadataInvalid           EventType = "metadata_invalid"

	// Informational requests
	EventExecutionRequest            EventType = "execution_request"
	EventDependencyResolutionRequest EventType = "dependency_resolution_request"
	EventDependencyResolutionResult  EventType = "dependency_resolution_result"
)

// TransferEdge is the begin or end of a transfer
type TransferEdge int

const (
	TransferBegin TransferEdge = iota
	TransferEnd
)

// TransferSpec describes what a transfer event type times
type TransferSpec struct {
	Kind TransferKind
	Op   TransferOp
	Edge TransferEdge
}

var transferEvents = map[EventType]TransferSpec{
	EventArtifactDownloading: {TransferArtifact, TransferDownload, TransferBegin},
	EventArtifactDownloaded:  {TransferArtifact, TransferDownload, TransferEnd},
	EventArtifactDeploying:   {TransferArtifact, TransferDeploy, TransferBegin},
	EventArtifactDeployed:    {TransferArtifact, TransferDeploy, TransferEnd},
	EventArtifactInstalling:  {TransferArtifact, TransferInstall, TransferBegin},
	EventArtifactInstalled:   {TransferArtifact, TransferInstall, TransferEnd},
	EventMetadataDownloading: {TransferMetadata, TransferDownload, TransferBegin},
	EventMetadataDownloaded:  {TransferMetadata, TransferDownload, TransferEnd},
	EventMetadataDeploying:   {TransferMetadata, TransferDeploy, TransferBegin},
	EventMetadataDeployed:    {TransferMetadata, TransferDeploy, TransferEnd},
	EventMetadataInstalling:  {TransferMetadata, TransferInstall, TransferBegin},
	EventMetadataInstalled:   {TransferMetadata, TransferInstall, TransferEnd},
}

// Transfer returns the transfer timer an event type drives, if any
func (t EventType) Transfer() (TransferSpec, bool) {
	tr, ok := transferEvents[t]
	return tr, ok
}

// Known reports whether the type belongs to the closed event set
func (t EventType) Known() bool {
	switch t {
	case EventDiscoveryStarted, EventSessionStarted, EventSessionEnded,
		EventForkStarted, EventForkSucceeded, EventForkFailed,
		EventForkedProjectStarted, EventForkedProjectSucceeded, EventForkedProjectFailed,
		EventModuleStarted, EventModuleSucceeded, EventModuleFailed, EventModuleSkipped,
		EventGoalStarted, EventGoalSucceeded, EventGoalFailed, EventGoalSkipped,
		EventArtifactResolving, EventArtifactResolved, EventArtifactDescriptorInvalid,
		EventArtifactDescriptorMissing, EventMetadataResolving, EventMetadataResolved,
		EventMetadataInvalid,
		EventExecutionRequest, EventDependencyResolutionRequest, EventDependencyResolutionResult:
		return true
	}
	_, ok := transferEvents[t]
	return ok
}

// Event is one notification from the orchestrator. Only the payload the
// type needs is set.
type Event struct {
	Type      EventType `json:"type" yaml:"type"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // zero means "now"
	Module    *Module   `json:"module,omitempty" yaml:"module,omitempty"`
	Goal      *Goal     `json:"goal,omitempty" yaml:"goal,omitempty"`
	Transfer  *Transfer `json:"transfer,omitempty" yaml:"transfer,omitempty"`
	Reactor   []Module  `json:"reactor,omitempty" yaml:"reactor,omitempty"` // session_ended: modules in build order
	Project   *Module   `json:"project,omitempty" yaml:"project,omitempty"` // session_started: top level project
}

// Validate checks the payload required by the event type
func (e Event) Validate() error {
	switch e.Type {
	case EventModuleStarted, EventModuleSucceeded, EventModuleFailed, EventModuleSkipped,
		EventForkedProjectStarted, EventForkedProjectSucceeded, EventForkedProjectFailed:
		if e.Module == nil {
			return fmt.Errorf("%w: %s requires a module", ErrInvalidEvent, e.Type)
		}
	case EventGoalStarted, EventGoalSucceeded, EventGoalFailed, EventGoalSkipped:
		if e.Module == nil || e.Goal == nil {
			return fmt.Errorf("%w: %s requires a module and a goal", ErrInvalidEvent, e.Type)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	default:
		if _, ok := transferEvents[e.Type]; ok && e.Transfer == nil {
			return fmt.Errorf("%w: %s requires a transfer", ErrInvalidEvent, e.Type)
		}
	}
	return nil
}
