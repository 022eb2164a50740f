package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsZeroFields(t *testing.T) {
	opts := ProcessingOptions{ChunkSize: 500}
	opts.Normalize()

	defaults := DefaultProcessingOptions()
	assert.Equal(t, 500, opts.ChunkSize)
	assert.Equal(t, defaults.ChunkOverlap, opts.ChunkOverlap)
	assert.Equal(t, defaults.MinChunkSize, opts.MinChunkSize)
	assert.Equal(t, defaults.MaxChunkSize, opts.MaxChunkSize)
	assert.Equal(t, defaults.Language, opts.Language)
}

func TestDefaultsValidate(t *testing.T) {
	opts := DefaultProcessingOptions()
	require.NoError(t, opts.Validate())
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cases := map[string]ProcessingOptions{
		"chunk size too small": func() ProcessingOptions {
			o := DefaultProcessingOptions()
			o.ChunkSize = 50
			return o
		}(),
		"overlap exceeds chunk size": func() ProcessingOptions {
			o := DefaultProcessingOptions()
			o.ChunkOverlap = o.ChunkSize + 1
			return o
		}(),
		"max below chunk size": func() ProcessingOptions {
			o := DefaultProcessingOptions()
			o.MaxChunkSize = o.ChunkSize - 1
			return o
		}(),
		"bad language tag": func() ProcessingOptions {
			o := DefaultProcessingOptions()
			o.Language = "not a language"
			return o
		}(),
	}

	for name, opts := range cases {
		err := opts.Validate()
		assert.Error(t, err, name)
		if err != nil {
			assert.Contains(t, err.Error(), "invalid processing options", name)
		}
	}
}
