package interfaces

import "github.com/vellumdocs/vellum/internal/models"

// ReportService renders a human-readable processing report for a job.
type ReportService interface {
	// RenderJobReport produces a PDF summary of the job's steps, timings,
	// detail lines, and result metadata.
	RenderJobReport(job models.Job) ([]byte, error)
}
