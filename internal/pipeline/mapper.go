// -----------------------------------------------------------------------
// Stage Mapper - translates remote checkpoint names onto the local
// pipeline step catalog
// -----------------------------------------------------------------------

package pipeline

import (
	"strings"
	"time"

	"github.com/vellumdocs/vellum/internal/models"
)

// StageMapper maps the remote processor's checkpoint vocabulary onto
// indices into the local step catalog. The remote backend has renamed
// stages across versions, so every known synonym is carried here; an
// unrecognized name is a deliberate no-op rather than an error.
type StageMapper struct {
	index map[string]int
}

// stageAliases maps normalized remote checkpoint names to local stage
// keys. Keep this table consolidated: stage/index drift between copies
// of this mapping has caused UI regressions before.
var stageAliases = map[string]string{
	// upload
	"upload":            models.StepUpload,
	"uploaded":          models.StepUpload,
	"file_received":     models.StepUpload,
	"document_received": models.StepUpload,

	// extract
	"extract":         models.StepExtract,
	"extracting":      models.StepExtract,
	"text_extracted":  models.StepExtract,
	"text_extraction": models.StepExtract,
	"parsing":         models.StepExtract,
	"parsed":          models.StepExtract,

	// chunk
	"chunk":          models.StepChunk,
	"chunking":       models.StepChunk,
	"chunks_created": models.StepChunk,
	"chunked":        models.StepChunk,

	// embed_text
	"embed_text":         models.StepEmbedText,
	"text_embedded":      models.StepEmbedText,
	"embedding_text":     models.StepEmbedText,
	"embeddings_created": models.StepEmbedText,
	"text_embeddings":    models.StepEmbedText,
	"embedding":          models.StepEmbedText,

	// extract_images
	"extract_images":   models.StepExtractImages,
	"images_extracted": models.StepExtractImages,
	"image_extraction": models.StepExtractImages,

	// embed_images
	"embed_images":             models.StepEmbedImages,
	"images_embedded":          models.StepEmbedImages,
	"image_embeddings":         models.StepEmbedImages,
	"image_embeddings_created": models.StepEmbedImages,

	// detect_products
	"detect_products":    models.StepDetectProducts,
	"products_detected":  models.StepDetectProducts,
	"product_detection":  models.StepDetectProducts,
	"material_detection": models.StepDetectProducts,

	// create_products
	"create_products":  models.StepCreateProducts,
	"products_created": models.StepCreateProducts,
	"kb_entries_saved": models.StepCreateProducts,
	"materials_saved":  models.StepCreateProducts,

	// finalize
	"finalize":   models.StepFinalize,
	"finalizing": models.StepFinalize,
	"finalized":  models.StepFinalize,
	"saving":     models.StepFinalize,
	"completed":  models.StepFinalize,
	"done":       models.StepFinalize,
}

// NewStageMapper builds the mapper from the step catalog and alias table.
func NewStageMapper() *StageMapper {
	index := make(map[string]int, len(stageAliases))
	for alias, stepID := range stageAliases {
		if idx := models.StepIndex(stepID); idx >= 0 {
			index[alias] = idx
		}
	}
	return &StageMapper{index: index}
}

// Normalize folds a raw remote stage name into lookup form: lowercase,
// trimmed, with whitespace and punctuation runs collapsed to underscores.
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Resolve maps a raw remote stage name to a step index, given the job's
// current index. Unknown names return current unchanged. Known names that
// map to an earlier index are clamped to current: out-of-order or
// duplicate status reports must never rewind progress.
func (m *StageMapper) Resolve(rawStage string, current int) int {
	idx, ok := m.index[Normalize(rawStage)]
	if !ok {
		return current
	}
	if idx < current {
		return current
	}
	return idx
}

// Apply advances the job to the step named by rawStage. Every step
// between the job's current step and the target is marked completed
// before the target is marked running, so stages are never silently
// skipped without being recorded. Returns true when the job advanced.
func (m *StageMapper) Apply(job *models.Job, rawStage string, now time.Time) bool {
	target := m.Resolve(rawStage, job.CurrentStepIndex)
	return job.AdvanceToStep(target, now)
}
