package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

func newTestDocumentHandler(svc interfaces.JobService) *DocumentHandler {
	cfg := common.NewDefaultConfig()
	return NewDocumentHandler(svc, cfg, arbor.NewLogger())
}

func multipartUpload(t *testing.T, filename string, data []byte, options string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if options != "" {
		require.NoError(t, writer.WriteField("options", options))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandlerStartsJob(t *testing.T) {
	var gotArtifact interfaces.Artifact
	var gotOpts models.ProcessingOptions
	svc := &mockJobService{
		startFunc: func(ctx context.Context, artifact interfaces.Artifact, opts models.ProcessingOptions) (string, error) {
			gotArtifact = artifact
			gotOpts = opts
			return "job-1", nil
		},
	}
	h := newTestDocumentHandler(svc)

	req := multipartUpload(t, "manual.pdf", []byte("%PDF-1.4 payload"), `{"chunk_size": 1500}`)
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, "manual.pdf", body["filename"])
	assert.Equal(t, "pending", body["status"])

	assert.Equal(t, "manual.pdf", gotArtifact.Filename)
	assert.Equal(t, []byte("%PDF-1.4 payload"), gotArtifact.Data)
	// The options payload overrides chunk size but configured defaults
	// fill everything it left out.
	assert.Equal(t, 1500, gotOpts.ChunkSize)
	assert.Equal(t, "en", gotOpts.Language)
	assert.True(t, gotOpts.IncludeImages)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	h := newTestDocumentHandler(&mockJobService{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("options", "{}"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerBadOptionsJSON(t *testing.T) {
	h := newTestDocumentHandler(&mockJobService{})

	req := multipartUpload(t, "manual.pdf", []byte("data"), "{not json")
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRejectsGet(t *testing.T) {
	h := newTestDocumentHandler(&mockJobService{})

	req := httptest.NewRequest("GET", "/api/documents", nil)
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadHandlerPropagatesServiceRejection(t *testing.T) {
	svc := &mockJobService{
		startFunc: func(ctx context.Context, artifact interfaces.Artifact, opts models.ProcessingOptions) (string, error) {
			return "", assert.AnError
		},
	}
	h := newTestDocumentHandler(svc)

	req := multipartUpload(t, "manual.pdf", []byte("data"), "")
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
