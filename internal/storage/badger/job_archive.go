package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

// archivedJob is the stored shape of a terminal job. CompletedAt is
// lifted out of the job as a plain value so it can be indexed and
// range-queried for retention purges.
type archivedJob struct {
	ID          string `badgerhold:"key"`
	CompletedAt time.Time
	Job         models.Job
}

// JobArchive implements the JobArchive interface for Badger
type JobArchive struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.JobArchive = (*JobArchive)(nil)

// NewJobArchive creates a new JobArchive instance
func NewJobArchive(db *BadgerDB, logger arbor.ILogger) *JobArchive {
	return &JobArchive{
		db:     db,
		logger: logger,
	}
}

// ArchiveJob stores a terminal job snapshot, upserting by job ID.
func (a *JobArchive) ArchiveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !job.IsTerminal() {
		return fmt.Errorf("job %s is not terminal", job.ID)
	}

	record := archivedJob{
		ID:  job.ID,
		Job: *job,
	}
	if job.CompletedAt != nil {
		record.CompletedAt = *job.CompletedAt
	}

	if err := a.db.Store().Upsert(job.ID, &record); err != nil {
		return fmt.Errorf("failed to archive job: %w", err)
	}
	return nil
}

// GetArchivedJob returns an archived job by ID.
func (a *JobArchive) GetArchivedJob(ctx context.Context, jobID string) (*models.Job, error) {
	var record archivedJob
	if err := a.db.Store().Get(jobID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("archived job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get archived job: %w", err)
	}
	return &record.Job, nil
}

// ListArchivedJobs returns archived jobs newest first.
func (a *JobArchive) ListArchivedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CompletedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []archivedJob
	if err := a.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list archived jobs: %w", err)
	}

	jobs := make([]*models.Job, len(records))
	for i := range records {
		jobs[i] = &records[i].Job
	}
	return jobs, nil
}

// PurgeArchivedBefore deletes archived jobs that finished before the
// cutoff and returns the number deleted.
func (a *JobArchive) PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("CompletedAt").Lt(cutoff)

	count, err := a.db.Store().Count(&archivedJob{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired archived jobs: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := a.db.Store().DeleteMatching(&archivedJob{}, query); err != nil {
		return 0, fmt.Errorf("failed to purge archived jobs: %w", err)
	}

	a.logger.Debug().Int("count", int(count)).Msg("Purged expired archived jobs")
	return int(count), nil
}
