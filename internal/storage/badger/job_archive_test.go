package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/models"
)

func newTestArchive(t *testing.T) *JobArchive {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobArchive(db, logger)
}

func terminalJob(id string, completedAt time.Time) *models.Job {
	job := models.NewJob(id, id+".pdf", completedAt.Add(-time.Minute))
	job.MarkRunning(completedAt.Add(-time.Minute))
	job.MarkCompleted(completedAt)
	return job
}

func TestArchiveJob_RoundTrip(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	job := terminalJob("job_a", now)
	job.Result.Merge(models.ResultMetadata{ChunksCreated: 9, DocumentID: "doc-a"})
	require.NoError(t, archive.ArchiveJob(ctx, job))

	got, err := archive.GetArchivedJob(ctx, "job_a")
	require.NoError(t, err)
	assert.Equal(t, "job_a", got.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 9, got.Result.ChunksCreated)
	assert.Equal(t, "doc-a", got.Result.DocumentID)

	_, err = archive.GetArchivedJob(ctx, "job_missing")
	assert.Error(t, err)
}

func TestArchiveJob_RejectsNonTerminal(t *testing.T) {
	archive := newTestArchive(t)

	live := models.NewJob("job_live", "live.pdf", time.Now())
	err := archive.ArchiveJob(context.Background(), live)
	assert.ErrorContains(t, err, "not terminal")
}

func TestArchiveJob_UpsertsByID(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_a", now)))
	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_a", now.Add(time.Minute))))

	jobs, err := archive.ListArchivedJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestListArchivedJobs_NewestFirstWithLimit(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_old", base)))
	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_mid", base.Add(time.Hour))))
	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_new", base.Add(2*time.Hour))))

	jobs, err := archive.ListArchivedJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job_new", jobs[0].ID)
	assert.Equal(t, "job_mid", jobs[1].ID)
}

func TestPurgeArchivedBefore(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_old", base)))
	require.NoError(t, archive.ArchiveJob(ctx, terminalJob("job_new", base.Add(48*time.Hour))))

	purged, err := archive.PurgeArchivedBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	jobs, err := archive.ListArchivedJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job_new", jobs[0].ID)

	purged, err = archive.PurgeArchivedBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, purged)
}
