package models

// StepDefinition describes one stage of the fixed processing pipeline.
// The catalog order is the processing order.
type StepDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Step catalog keys. These are the local stage identities; the remote
// processor's checkpoint vocabulary is translated onto them by the
// pipeline.StageMapper.
const (
	StepUpload         = "upload"
	StepExtract        = "extract"
	StepChunk          = "chunk"
	StepEmbedText      = "embed_text"
	StepExtractImages  = "extract_images"
	StepEmbedImages    = "embed_images"
	StepDetectProducts = "detect_products"
	StepCreateProducts = "create_products"
	StepFinalize       = "finalize"
)

// pipelineSteps is the ordered, fixed catalog of processing stages.
var pipelineSteps = []StepDefinition{
	{ID: StepUpload, Name: "Upload", Description: "Upload document to the processing backend"},
	{ID: StepExtract, Name: "Extract text", Description: "Extract raw text and layout from the document"},
	{ID: StepChunk, Name: "Chunk", Description: "Split extracted text into retrieval chunks"},
	{ID: StepEmbedText, Name: "Embed text", Description: "Generate embeddings for text chunks"},
	{ID: StepExtractImages, Name: "Extract images", Description: "Extract embedded images from the document"},
	{ID: StepEmbedImages, Name: "Embed images", Description: "Generate embeddings for extracted images"},
	{ID: StepDetectProducts, Name: "Detect products", Description: "Detect product mentions in document content"},
	{ID: StepCreateProducts, Name: "Create products", Description: "Create knowledge-base entries for detected products"},
	{ID: StepFinalize, Name: "Finalize", Description: "Persist results and finish processing"},
}

// PipelineSteps returns the ordered stage catalog.
func PipelineSteps() []StepDefinition {
	out := make([]StepDefinition, len(pipelineSteps))
	copy(out, pipelineSteps)
	return out
}

// PipelineLength returns the number of stages in the catalog.
func PipelineLength() int {
	return len(pipelineSteps)
}

// StepIndex returns the catalog index for a local stage key, or -1 when
// the key is unknown.
func StepIndex(id string) int {
	for i, def := range pipelineSteps {
		if def.ID == id {
			return i
		}
	}
	return -1
}

// NewPipelineRun builds a fresh pending Step sequence from the catalog
// for a new job.
func NewPipelineRun() []Step {
	steps := make([]Step, len(pipelineSteps))
	for i, def := range pipelineSteps {
		steps[i] = Step{
			ID:     def.ID,
			Name:   def.Name,
			Status: StepStatusPending,
		}
	}
	return steps
}
