package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := &common.ProcessorConfig{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		SubmitTimeout:  10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(config, arbor.NewLogger()), server
}

func testArtifact() interfaces.Artifact {
	return interfaces.Artifact{
		Filename:    "manual.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 test payload"),
	}
}

func TestClient_Submit_Async(t *testing.T) {
	var gotAuth, gotOptions, gotFilename string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/documents", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotOptions = r.FormValue("options")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job_id":      "remote-123",
			"document_id": "doc-456",
			"status":      "pending",
		})
	})

	result, err := client.Submit(context.Background(), testArtifact(), models.DefaultProcessingOptions())
	require.NoError(t, err)

	assert.Equal(t, "remote-123", result.RemoteJobID)
	assert.Equal(t, "doc-456", result.RemoteDocumentID)
	assert.False(t, result.Completed)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "manual.pdf", gotFilename)

	var opts models.ProcessingOptions
	require.NoError(t, json.Unmarshal([]byte(gotOptions), &opts))
	assert.Equal(t, 1000, opts.ChunkSize)
	assert.Equal(t, 200, opts.ChunkOverlap)
}

func TestClient_Submit_SynchronousCompletion(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "completed",
			"metadata": map[string]interface{}{
				"chunks_created": 4,
				"document_id":    "doc-sync",
			},
		})
	})

	result, err := client.Submit(context.Background(), testArtifact(), models.DefaultProcessingOptions())
	require.NoError(t, err)

	assert.True(t, result.Completed)
	require.NotNil(t, result.Final)
	assert.Equal(t, interfaces.RemoteStatusCompleted, result.Final.Status)
	assert.Equal(t, 4, result.Final.Metadata.ChunksCreated)
	assert.Equal(t, "doc-sync", result.RemoteDocumentID)
}

func TestClient_Submit_RejectsMissingJobID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "pending"})
	})

	_, err := client.Submit(context.Background(), testArtifact(), models.DefaultProcessingOptions())
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
}

func TestClient_Submit_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantKind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"unsupported media", http.StatusUnsupportedMediaType, KindRejected},
		{"payload too large", http.StatusRequestEntityTooLarge, KindRejected},
		{"server error", http.StatusInternalServerError, KindTransient},
		{"bad gateway", http.StatusBadGateway, KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(map[string]string{"error": "backend says no"})
			})

			_, err := client.Submit(context.Background(), testArtifact(), models.DefaultProcessingOptions())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Contains(t, err.Error(), "backend says no")
		})
	}
}

func TestClient_Status_DecodesProgress(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/jobs/remote-123", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":              "processing",
			"progress_percentage": 42,
			"current_stage":       "chunking",
		})
	})

	status, err := client.Status(context.Background(), "remote-123")
	require.NoError(t, err)

	assert.Equal(t, interfaces.RemoteStatusProcessing, status.Status)
	require.NotNil(t, status.ProgressPercentage)
	assert.Equal(t, 42, *status.ProgressPercentage)
	assert.Equal(t, "chunking", status.Stage)
}

func TestClient_Status_CheckpointStageFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "running",
			"last_checkpoint": map[string]string{
				"stage": "chunks_created",
			},
		})
	})

	status, err := client.Status(context.Background(), "remote-123")
	require.NoError(t, err)

	assert.Equal(t, "chunks_created", status.Stage)
	assert.Nil(t, status.ProgressPercentage)
}

func TestClient_Status_MergesResultFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "completed",
			"details": map[string]interface{}{
				"chunks_created": 10,
				"source":         "ocr",
			},
			"metadata": map[string]interface{}{
				"chunks_created":   12,
				"images_extracted": 3,
				"text_length":      5000,
				"kb_entries_saved": 12,
				"document_id":      "doc-789",
			},
		})
	})

	status, err := client.Status(context.Background(), "remote-123")
	require.NoError(t, err)

	// metadata wins over details for duplicated keys
	assert.Equal(t, 12, status.Metadata.ChunksCreated)
	assert.Equal(t, 3, status.Metadata.ImagesExtracted)
	assert.Equal(t, 5000, status.Metadata.TextLength)
	assert.Equal(t, 12, status.Metadata.KBEntriesSaved)
	assert.Equal(t, "doc-789", status.Metadata.DocumentID)
	assert.Equal(t, "ocr", status.Metadata.Extra["source"])
}

func TestClient_Status_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Status(context.Background(), "gone")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestClient_Status_NetworkErrorIsTransient(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.Status(context.Background(), "remote-123")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Default()
	require.Error(t, err)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	registry.Register(client)

	got, err := registry.Get(ClientName)
	require.NoError(t, err)
	assert.Equal(t, client, got)

	def, err := registry.Default()
	require.NoError(t, err)
	assert.Equal(t, client, def)

	_, err = registry.Get("nonexistent")
	assert.Error(t, err)

	assert.Equal(t, []string{ClientName}, registry.Names())
}
