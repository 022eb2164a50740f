package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// optionsValidator validates ProcessingOptions structs. validator.Validate
// caches struct metadata, so a single shared instance is the cheap path.
var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// ProcessingOptions are the knobs forwarded to the remote document
// processor at submission time. Zero values are replaced by defaults
// via Normalize before validation.
type ProcessingOptions struct {
	ChunkSize        int    `json:"chunk_size" validate:"gte=100,lte=8000"`
	ChunkOverlap     int    `json:"chunk_overlap" validate:"gte=0,ltefield=ChunkSize"`
	MinChunkSize     int    `json:"min_chunk_size" validate:"gte=0,ltefield=ChunkSize"`
	MaxChunkSize     int    `json:"max_chunk_size" validate:"gtefield=ChunkSize,lte=16000"`
	IncludeImages    bool   `json:"include_images"`
	PreserveLayout   bool   `json:"preserve_layout"`
	ExtractMaterials bool   `json:"extract_materials"`
	Language         string `json:"language" validate:"omitempty,bcp47_language_tag"`
	WorkspaceAware   bool   `json:"workspace_aware"`
}

// DefaultProcessingOptions returns the options used when the caller
// supplies none.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		ChunkSize:     1000,
		ChunkOverlap:  200,
		MinChunkSize:  100,
		MaxChunkSize:  2000,
		IncludeImages: true,
		Language:      "en",
	}
}

// Normalize fills zero-valued numeric fields with defaults so partially
// specified option payloads validate cleanly.
func (o *ProcessingOptions) Normalize() {
	defaults := DefaultProcessingOptions()
	if o.ChunkSize == 0 {
		o.ChunkSize = defaults.ChunkSize
	}
	if o.ChunkOverlap == 0 {
		o.ChunkOverlap = defaults.ChunkOverlap
	}
	if o.MinChunkSize == 0 {
		o.MinChunkSize = defaults.MinChunkSize
	}
	if o.MaxChunkSize == 0 {
		o.MaxChunkSize = defaults.MaxChunkSize
	}
	if o.Language == "" {
		o.Language = defaults.Language
	}
}

// Validate checks option ranges after normalization.
func (o *ProcessingOptions) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("invalid processing options: %w", err)
	}
	return nil
}
