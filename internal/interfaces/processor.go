// -----------------------------------------------------------------------
// Document Processor Interface - remote job-submission/status API
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/vellumdocs/vellum/internal/models"
)

// Artifact is the binary payload handed to the processing backend.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitResult is the remote handle returned by a successful submission.
// Small documents may be processed synchronously, in which case Completed
// is true and Final carries the terminal status payload.
type SubmitResult struct {
	RemoteJobID      string
	RemoteDocumentID string
	Completed        bool
	Final            *RemoteStatus
}

// RemoteStatus is the decoded remote job-status payload. Stage carries the
// backend's own checkpoint name, which is not guaranteed to match local
// step identifiers one-to-one.
type RemoteStatus struct {
	Status             string
	ProgressPercentage *int
	Stage              string
	Metadata           models.ResultMetadata
	Error              string
}

// Terminal remote status values as reported by the backend.
const (
	RemoteStatusPending    = "pending"
	RemoteStatusProcessing = "processing"
	RemoteStatusRunning    = "running"
	RemoteStatusCompleted  = "completed"
	RemoteStatusFailed     = "failed"
	RemoteStatusError      = "error"
)

// DocumentProcessor abstracts the external document-processing backend,
// allowing different providers to be registered interchangeably.
type DocumentProcessor interface {
	// Name returns the registry key for this processor.
	Name() string

	// Submit uploads the artifact together with processing options and
	// returns a remote handle for asynchronous tracking. Submission
	// failures are never retried at this layer.
	Submit(ctx context.Context, artifact Artifact, opts models.ProcessingOptions) (*SubmitResult, error)

	// Status queries the remote job status for a previously submitted job.
	Status(ctx context.Context, remoteJobID string) (*RemoteStatus, error)
}
