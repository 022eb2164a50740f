package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vellumdocs/vellum/internal/models"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Chunking":         "chunking",
		"  text extracted ": "text_extracted",
		"Text-Extraction":  "text_extraction",
		"KB entries saved": "kb_entries_saved",
		"images__embedded": "images_embedded",
		"finalize!":        "finalize",
		"":                 "",
	}

	for input, want := range cases {
		assert.Equal(t, want, Normalize(input), "input %q", input)
	}
}

func TestResolveKnownAliases(t *testing.T) {
	m := NewStageMapper()

	cases := map[string]string{
		"uploaded":         models.StepUpload,
		"Text Extraction":  models.StepExtract,
		"parsing":          models.StepExtract,
		"chunks_created":   models.StepChunk,
		"embedding":        models.StepEmbedText,
		"images_extracted": models.StepExtractImages,
		"image_embeddings": models.StepEmbedImages,
		"product_detection": models.StepDetectProducts,
		"kb_entries_saved": models.StepCreateProducts,
		"saving":           models.StepFinalize,
		"done":             models.StepFinalize,
	}

	for raw, stepID := range cases {
		want := models.StepIndex(stepID)
		require.GreaterOrEqual(t, want, 0, "catalog is missing %q", stepID)
		assert.Equal(t, want, m.Resolve(raw, 0), "stage %q", raw)
	}
}

func TestResolveUnknownStageKeepsCurrent(t *testing.T) {
	m := NewStageMapper()

	assert.Equal(t, 3, m.Resolve("reticulating_splines", 3))
	assert.Equal(t, 0, m.Resolve("", 0))
}

func TestResolveNeverRewinds(t *testing.T) {
	m := NewStageMapper()

	chunk := models.StepIndex(models.StepChunk)
	finalize := models.StepIndex(models.StepFinalize)

	// A late or duplicated "chunking" report after finalize is clamped.
	assert.Equal(t, finalize, m.Resolve("chunking", finalize))
	// Forward targets pass through.
	assert.Equal(t, finalize, m.Resolve("finalizing", chunk))
}

func TestApplyCompletesSkippedStages(t *testing.T) {
	m := NewStageMapper()
	now := time.Now()

	job := models.NewJob("job-1", "doc.pdf", now)
	job.MarkRunning(now)

	// Backend jumps straight from upload to embedding; every stage in
	// between must be recorded as completed.
	advanced := m.Apply(job, "text_embeddings", now.Add(time.Second))
	require.True(t, advanced)

	embedIdx := models.StepIndex(models.StepEmbedText)
	assert.Equal(t, embedIdx, job.CurrentStepIndex)
	for i := 0; i < embedIdx; i++ {
		assert.Equal(t, models.StepStatusCompleted, job.Steps[i].Status, "step %d", i)
	}
	assert.Equal(t, models.StepStatusRunning, job.Steps[embedIdx].Status)
}

func TestApplyUnknownStageIsNoOp(t *testing.T) {
	m := NewStageMapper()
	now := time.Now()

	job := models.NewJob("job-1", "doc.pdf", now)
	job.MarkRunning(now)

	assert.False(t, m.Apply(job, "warming_up", now))
	assert.Equal(t, 0, job.CurrentStepIndex)
}
