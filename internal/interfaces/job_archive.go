package interfaces

import (
	"context"
	"time"

	"github.com/vellumdocs/vellum/internal/models"
)

// JobArchive persists terminal jobs for durable history beyond the
// in-memory store's retention window.
type JobArchive interface {
	// ArchiveJob stores a terminal job snapshot. Upserts by job ID.
	ArchiveJob(ctx context.Context, job *models.Job) error

	// GetArchivedJob returns an archived job by ID.
	GetArchivedJob(ctx context.Context, jobID string) (*models.Job, error)

	// ListArchivedJobs returns archived jobs newest first, up to limit
	// (0 means no limit).
	ListArchivedJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// PurgeArchivedBefore deletes archived jobs that finished before the
	// cutoff and returns the number deleted.
	PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
