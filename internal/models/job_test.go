package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobStartsPendingWithFullCatalog(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.CurrentStepIndex)
	require.Len(t, job.Steps, PipelineLength())
	for _, step := range job.Steps {
		assert.Equal(t, StepStatusPending, step.Status)
	}
}

func TestMarkRunningStartsFirstStep(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)

	job.MarkRunning(now)

	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, StepStatusRunning, job.Steps[0].Status)
	require.NotNil(t, job.Steps[0].StartedAt)

	// Promoting again is a no-op once running.
	job.MarkRunning(now.Add(time.Minute))
	assert.Equal(t, *job.Steps[0].StartedAt, now)
}

func TestMarkCompletedFlushesAllSteps(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)

	done := now.Add(time.Minute)
	job.MarkCompleted(done)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, len(job.Steps)-1, job.CurrentStepIndex)
	for _, step := range job.Steps {
		assert.Equal(t, StepStatusCompleted, step.Status)
	}
}

func TestMarkFailedSkipsUntouchedSteps(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)
	job.AdvanceToStep(2, now)

	job.MarkFailed(now.Add(time.Second), "remote blew up", "remote_failure")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "remote blew up", job.Error)
	assert.Equal(t, "remote_failure", job.ErrorCode)
	assert.Equal(t, StepStatusCompleted, job.Steps[0].Status)
	assert.Equal(t, StepStatusCompleted, job.Steps[1].Status)
	assert.Equal(t, StepStatusFailed, job.Steps[2].Status)
	for _, step := range job.Steps[3:] {
		assert.Equal(t, StepStatusSkipped, step.Status)
	}
}

func TestTerminalJobIsImmutable(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)
	job.MarkFailed(now, "cancelled by user", "cancelled")
	completedAt := *job.CompletedAt

	// None of these may alter a terminal job.
	job.MarkCompleted(now.Add(time.Hour))
	job.MarkFailed(now.Add(time.Hour), "other", "other")
	job.SetProgress(99)
	assert.False(t, job.AdvanceToStep(5, now.Add(time.Hour)))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "cancelled by user", job.Error)
	assert.Equal(t, "cancelled", job.ErrorCode)
	assert.Equal(t, completedAt, *job.CompletedAt)
}

func TestSetProgressIsMonotonicAndClamped(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)

	// Ignored while pending.
	job.SetProgress(40)
	assert.Equal(t, 0, job.Progress)

	job.MarkRunning(now)
	job.SetProgress(40)
	assert.Equal(t, 40, job.Progress)

	// Lower values never rewind.
	job.SetProgress(10)
	assert.Equal(t, 40, job.Progress)

	job.SetProgress(250)
	assert.Equal(t, 100, job.Progress)
}

func TestAdvanceToStepIgnoresBackwardAndOutOfRange(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)

	require.True(t, job.AdvanceToStep(3, now))
	assert.Equal(t, 3, job.CurrentStepIndex)

	assert.False(t, job.AdvanceToStep(1, now))
	assert.False(t, job.AdvanceToStep(3, now))
	assert.False(t, job.AdvanceToStep(len(job.Steps), now))
	assert.Equal(t, 3, job.CurrentStepIndex)
}

func TestAddDetailAppendsToCurrentStep(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)

	job.AddDetail(now, DetailInfo, "Uploading manual.pdf")
	job.AddDetail(now.Add(time.Second), DetailSuccess, "Upload complete")

	require.Len(t, job.Steps[0].Details, 2)
	assert.Equal(t, "Uploading manual.pdf", job.Steps[0].Details[0].Message)
	assert.Equal(t, DetailSuccess, job.Steps[0].Details[1].Level)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	job := NewJob("job-1", "manual.pdf", now)
	job.MarkRunning(now)
	job.AddDetail(now, DetailInfo, "first")
	job.Result.Merge(ResultMetadata{ChunksCreated: 5, Extra: map[string]interface{}{"source": "ocr"}})

	clone := job.Clone()

	job.AddDetail(now, DetailInfo, "second")
	job.Result.Extra["source"] = "mutated"
	job.Steps[0].Status = StepStatusFailed

	assert.Len(t, clone.Steps[0].Details, 1)
	assert.Equal(t, "ocr", clone.Result.Extra["source"])
	assert.Equal(t, StepStatusRunning, clone.Steps[0].Status)
}

func TestResultMetadataMerge(t *testing.T) {
	m := ResultMetadata{ChunksCreated: 3, DocumentID: "doc-1"}

	m.Merge(ResultMetadata{
		ImagesExtracted: 2,
		Extra:           map[string]interface{}{"source": "ocr"},
	})

	// Zero values in the incoming payload never erase existing facts.
	m.Merge(ResultMetadata{TextLength: 900})

	assert.Equal(t, 3, m.ChunksCreated)
	assert.Equal(t, "doc-1", m.DocumentID)
	assert.Equal(t, 2, m.ImagesExtracted)
	assert.Equal(t, 900, m.TextLength)
	assert.Equal(t, "ocr", m.Extra["source"])
}
