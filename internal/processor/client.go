// -----------------------------------------------------------------------
// Processor Client - HTTP client for the remote document-processing API
// -----------------------------------------------------------------------

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

// ClientName is the registry key for the default HTTP processor backend.
const ClientName = "docext"

// Client talks to the remote document-processing backend over HTTP.
// Submission uses a long timeout (uploads of large documents take
// minutes); status queries use a short one.
type Client struct {
	baseURL      string
	apiKey       string
	submitClient *http.Client
	statusClient *http.Client
	logger       arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DocumentProcessor = (*Client)(nil)

// NewClient creates a processor client from configuration.
func NewClient(config *common.ProcessorConfig, logger arbor.ILogger) *Client {
	return &Client{
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
		submitClient: &http.Client{Timeout: config.SubmitTimeout},
		statusClient: &http.Client{Timeout: config.RequestTimeout},
		logger:       logger,
	}
}

// Name returns the registry key for this processor.
func (c *Client) Name() string {
	return ClientName
}

// submitResponse is the wire shape of a submission reply. The backend
// answers small documents synchronously with a completed status payload.
type submitResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	statusResponse
}

// statusResponse is the wire shape of a job-status reply. Older backend
// versions report the stage under last_checkpoint.stage instead of
// current_stage, and result fields have appeared under details,
// parameters and metadata across versions.
type statusResponse struct {
	Status             string `json:"status"`
	ProgressPercentage *int   `json:"progress_percentage"`
	CurrentStage       string `json:"current_stage"`
	LastCheckpoint     *struct {
		Stage string `json:"stage"`
	} `json:"last_checkpoint"`
	Details    map[string]interface{} `json:"details"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
	Error      string                 `json:"error"`
}

// Submit uploads the artifact as multipart form data together with a JSON
// options part and returns the remote handle.
func (c *Client) Submit(ctx context.Context, artifact interfaces.Artifact, opts models.ProcessingOptions) (*interfaces.SubmitResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", artifact.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart file part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, fmt.Errorf("failed to write artifact payload: %w", err)
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal processing options: %w", err)
	}
	if err := writer.WriteField("options", string(optsJSON)); err != nil {
		return nil, fmt.Errorf("failed to write options part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := c.baseURL + "/api/v1/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	c.logger.Debug().
		Str("filename", artifact.Filename).
		Int("size", len(artifact.Data)).
		Msg("Submitting artifact to processing backend")

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: KindTransient, Op: "submit", Message: "upload failed", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyHTTP("submit", resp); err != nil {
		return nil, err
	}

	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &RemoteError{Kind: KindRejected, Op: "submit", StatusCode: resp.StatusCode,
			Message: "unreadable submission response", Err: err}
	}

	result := &interfaces.SubmitResult{
		RemoteJobID:      decoded.JobID,
		RemoteDocumentID: decoded.DocumentID,
	}

	// A synchronous completion carries no job id to poll.
	if decoded.Status == interfaces.RemoteStatusCompleted {
		result.Completed = true
		final := decoded.statusResponse.toRemoteStatus()
		result.Final = &final
		if result.RemoteDocumentID == "" {
			result.RemoteDocumentID = final.Metadata.DocumentID
		}
		return result, nil
	}

	if result.RemoteJobID == "" {
		return nil, &RemoteError{Kind: KindRejected, Op: "submit", StatusCode: resp.StatusCode,
			Message: "backend returned neither a job id nor a completed result"}
	}

	return result, nil
}

// Status queries the remote job status for a previously submitted job.
func (c *Client) Status(ctx context.Context, remoteJobID string) (*interfaces.RemoteStatus, error) {
	url := fmt.Sprintf("%s/api/v1/jobs/%s", c.baseURL, remoteJobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.statusClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: KindTransient, Op: "status", Message: "status query failed", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyHTTP("status", resp); err != nil {
		return nil, err
	}

	var decoded statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &RemoteError{Kind: KindTransient, Op: "status", StatusCode: resp.StatusCode,
			Message: "unreadable status response", Err: err}
	}

	status := decoded.toRemoteStatus()
	return &status, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyHTTP converts non-2xx responses into the error taxonomy.
func classifyHTTP(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := readErrorBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &RemoteError{Kind: KindAuth, Op: op, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return &RemoteError{Kind: KindNotFound, Op: op, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RemoteError{Kind: KindRejected, Op: op, StatusCode: resp.StatusCode, Message: msg}
	default:
		return &RemoteError{Kind: KindTransient, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
}

// readErrorBody pulls a short error message out of a failed response,
// preferring the JSON "error" field when present.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no error detail provided"
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(data)
}

// toRemoteStatus converts the wire payload into the internal status
// shape, reconciling field-name drift across backend versions.
func (s statusResponse) toRemoteStatus() interfaces.RemoteStatus {
	stage := s.CurrentStage
	if stage == "" && s.LastCheckpoint != nil {
		stage = s.LastCheckpoint.Stage
	}

	// Result fields have been reported under different keys over time;
	// merge in declaration order so the newest key wins.
	merged := make(map[string]interface{})
	for _, m := range []map[string]interface{}{s.Details, s.Parameters, s.Metadata} {
		for k, v := range m {
			merged[k] = v
		}
	}

	return interfaces.RemoteStatus{
		Status:             s.Status,
		ProgressPercentage: s.ProgressPercentage,
		Stage:              stage,
		Metadata:           decodeResultMetadata(merged),
		Error:              s.Error,
	}
}

// decodeResultMetadata lifts the known typed fields out of the merged
// remote bag; everything else is preserved untouched in Extra.
func decodeResultMetadata(raw map[string]interface{}) models.ResultMetadata {
	var meta models.ResultMetadata
	for k, v := range raw {
		switch k {
		case "chunks_created":
			meta.ChunksCreated = asInt(v)
		case "images_extracted":
			meta.ImagesExtracted = asInt(v)
		case "text_length":
			meta.TextLength = asInt(v)
		case "kb_entries_saved":
			meta.KBEntriesSaved = asInt(v)
		case "document_id":
			if s, ok := v.(string); ok {
				meta.DocumentID = s
			}
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]interface{})
			}
			meta.Extra[k] = v
		}
	}
	return meta
}

// asInt handles both int and float64 (JSON unmarshaling converts numbers
// to float64).
func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
