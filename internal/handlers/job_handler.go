// -----------------------------------------------------------------------
// Job Handler - job listing, lifecycle actions, history, and reports
// -----------------------------------------------------------------------

package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

// JobHandler handles job-related API requests
type JobHandler struct {
	jobService interfaces.JobService
	archive    interfaces.JobArchive
	reports    interfaces.ReportService
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService interfaces.JobService, archive interfaces.JobArchive, reports interfaces.ReportService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		archive:    archive,
		reports:    reports,
		logger:     logger,
	}
}

// ListJobsHandler returns all tracked jobs, newest first
// GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobs := h.jobService.ListJobs()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler returns a single job snapshot by ID
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, ok := h.jobService.GetJob(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// RetryJobHandler resubmits a terminal job from scratch
// POST /api/jobs/{id}/retry
func (h *JobHandler) RetryJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.jobService.RetryJob(r.Context(), jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Retry rejected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job retry started")
	WriteSuccess(w, fmt.Sprintf("Job %s resubmitted", jobID))
}

// CancelJobHandler stops tracking an in-flight job
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.jobService.CancelJob(jobID); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	WriteSuccess(w, fmt.Sprintf("Job %s cancelled", jobID))
}

// ClearCompletedHandler removes all terminal jobs from the active list
// POST /api/jobs/clear-completed
func (h *JobHandler) ClearCompletedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	removed := h.jobService.ClearCompletedJobs()

	h.logger.Info().Int("removed", removed).Msg("Cleared completed jobs")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}

// HistoryHandler returns archived terminal jobs, newest first
// GET /api/jobs/history?limit=50
func (h *JobHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if h.archive == nil {
		WriteError(w, http.StatusServiceUnavailable, "Job history is not enabled")
		return
	}

	limit := QueryInt(r, "limit", 50)
	jobs, err := h.archive.ListArchivedJobs(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list archived jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list archived jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// ReportHandler renders a PDF processing report for a job. Falls back to
// the archive when the job has already been cleared from memory.
// GET /api/jobs/{id}/report
func (h *JobHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if h.reports == nil {
		WriteError(w, http.StatusServiceUnavailable, "Report rendering is not enabled")
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, ok := h.jobService.GetJob(jobID)
	if !ok {
		archived := h.lookupArchived(r, jobID)
		if archived == nil {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		job = *archived
	}

	pdf, err := h.reports.RenderJobReport(job)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to render job report")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+"-report.pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *JobHandler) lookupArchived(r *http.Request, jobID string) *models.Job {
	if h.archive == nil {
		return nil
	}
	job, err := h.archive.GetArchivedJob(r.Context(), jobID)
	if err != nil {
		return nil
	}
	return job
}

// jobIDFromPath extracts the job ID segment from paths of the form
// /api/jobs/{id} or /api/jobs/{id}/{action}.
func jobIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
