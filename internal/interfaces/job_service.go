package interfaces

import (
	"context"

	"github.com/vellumdocs/vellum/internal/models"
)

// JobSubscriber receives a consistent job snapshot after every mutation.
// Callbacks run synchronously in mutation order; a panicking subscriber
// does not prevent delivery to the others.
type JobSubscriber func(job models.Job)

// JobService orchestrates document-processing jobs: submission to the
// remote backend, status polling, and fan-out of state snapshots.
type JobService interface {
	// StartProcessing creates a job for the artifact and begins
	// asynchronous processing. The job is registered (and observable)
	// before the remote upload completes; the returned job ID is valid
	// immediately.
	StartProcessing(ctx context.Context, artifact Artifact, opts models.ProcessingOptions) (string, error)

	// GetJob returns a snapshot of the job, if known.
	GetJob(jobID string) (models.Job, bool)

	// ListJobs returns snapshots of all known jobs, newest first.
	ListJobs() []models.Job

	// RetryJob resets a terminal job to step zero and resubmits the
	// retained artifact to the remote backend.
	RetryJob(ctx context.Context, jobID string) error

	// CancelJob stops polling for a job. Idempotent; already-applied
	// state is never undone.
	CancelJob(jobID string) error

	// ClearCompletedJobs removes all terminal jobs and returns the
	// number removed. In-flight jobs are untouched.
	ClearCompletedJobs() int

	// Subscribe registers a snapshot callback and returns an idempotent
	// unsubscribe function.
	Subscribe(fn JobSubscriber) func()

	// Close cancels all pollers and releases resources.
	Close()
}
