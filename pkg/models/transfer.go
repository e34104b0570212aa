package models

// TransferKind distinguishes artifacts from repository metadata
type TransferKind string

const (
	TransferArtifact TransferKind = "artifact"
	TransferMetadata TransferKind = "metadata"
)

// TransferOp is the direction of a dependency transfer
type TransferOp string

const (
	TransferDownload TransferOp = "download"
	TransferDeploy   TransferOp = "deploy"
	TransferInstall  TransferOp = "install"
)

// Transfer describes an artifact or metadata moved to/from a repository
type Transfer struct {
	Coordinate string `json:"coordinate" yaml:"coordinate"` // e.g. "junit:junit:4.13.2:jar"
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	Size       int64  `json:"size,omitempty" yaml:"size,omitempty"` // bytes, set on completion
}

// Key returns the transfer identity
func (t Transfer) Key() TransferKey {
	return TransferKey{Coordinate: t.Coordinate, Repository: t.Repository}
}

// TransferKey identifies one transfer operation
type TransferKey struct {
	Coordinate string
	Repository string
}

// String renders the coordinate, with the repository when known
func (k TransferKey) String() string {
	if k.Repository == "" {
		return k.Coordinate
	}
	return k.Coordinate + " (" + k.Repository + ")"
}
