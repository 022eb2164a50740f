// -----------------------------------------------------------------------
// Route Registration - plain ServeMux with explicit path dispatch
// -----------------------------------------------------------------------

package server

import (
	"net/http"
	"strings"
)

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Document upload
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.UploadHandler)

	// Job listing and job subroutes
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// WebSocket relay for realtime job updates
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// System endpoints
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Unknown API paths get a JSON 404 rather than the default text page
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes dispatches /api/jobs/* subroutes:
//
//	GET  /api/jobs/history          - archived terminal jobs
//	POST /api/jobs/clear-completed  - remove terminal jobs from memory
//	GET  /api/jobs/{id}             - single job snapshot
//	POST /api/jobs/{id}/retry       - resubmit a terminal job
//	POST /api/jobs/{id}/cancel      - stop tracking an in-flight job
//	GET  /api/jobs/{id}/report      - PDF processing report
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")

	switch {
	case path == "history":
		s.app.JobHandler.HistoryHandler(w, r)
	case path == "clear-completed":
		s.app.JobHandler.ClearCompletedHandler(w, r)
	case strings.HasSuffix(path, "/retry"):
		s.app.JobHandler.RetryJobHandler(w, r)
	case strings.HasSuffix(path, "/cancel"):
		s.app.JobHandler.CancelJobHandler(w, r)
	case strings.HasSuffix(path, "/report"):
		s.app.JobHandler.ReportHandler(w, r)
	case path != "" && !strings.Contains(path, "/"):
		s.app.JobHandler.GetJobHandler(w, r)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
