// -----------------------------------------------------------------------
// Document Handler - multipart upload entry point for processing jobs
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

// DocumentHandler accepts document uploads and hands them to the job
// service for remote processing.
type DocumentHandler struct {
	jobService    interfaces.JobService
	defaults      common.DefaultsConfig
	maxUploadSize int64
	logger        arbor.ILogger
}

// NewDocumentHandler creates a new document upload handler
func NewDocumentHandler(jobService interfaces.JobService, config *common.Config, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		jobService:    jobService,
		defaults:      config.Defaults,
		maxUploadSize: config.Processor.MaxUploadSize,
		logger:        logger,
	}
}

// UploadHandler accepts a multipart document upload and starts a job.
// POST /api/documents
//
// Form fields:
//
//	file    - the document to process (required)
//	options - JSON-encoded processing options (optional, defaults applied)
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to parse multipart upload")
		WriteError(w, http.StatusBadRequest, "Invalid multipart request or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing 'file' form field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read uploaded file")
		WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	opts := h.baseOptions()
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid 'options' JSON")
			return
		}
	}

	artifact := interfaces.Artifact{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	jobID, err := h.jobService.StartProcessing(r.Context(), artifact, opts)
	if err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Upload rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("filename", header.Filename).
		Int("size_bytes", len(data)).
		Msg("Document accepted for processing")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"filename": header.Filename,
		"status":   string(models.JobStatusPending),
	})
}

// baseOptions seeds processing options from configured defaults so a
// partial options payload only overrides what it names.
func (h *DocumentHandler) baseOptions() models.ProcessingOptions {
	opts := models.DefaultProcessingOptions()
	if h.defaults.ChunkSize > 0 {
		opts.ChunkSize = h.defaults.ChunkSize
	}
	if h.defaults.ChunkOverlap > 0 {
		opts.ChunkOverlap = h.defaults.ChunkOverlap
	}
	if h.defaults.Language != "" {
		opts.Language = h.defaults.Language
	}
	opts.IncludeImages = h.defaults.IncludeImages
	return opts
}
