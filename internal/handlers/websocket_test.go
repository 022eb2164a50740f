package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/models"
)

func wsJob(id string, status models.JobStatus) models.Job {
	j := models.NewJob(id, "doc.pdf", time.Now())
	j.Status = status
	return *j
}

func TestWebSocketHandler_ThrottleIsPerJob(t *testing.T) {
	cfg := &common.WebSocketConfig{ProgressThrottle: time.Minute}
	h := NewWebSocketHandler(nil, arbor.NewLogger(), cfg)
	t.Cleanup(h.Close)

	assert.True(t, h.shouldForward(wsJob("job_a", models.JobStatusRunning)))
	assert.False(t, h.shouldForward(wsJob("job_a", models.JobStatusRunning)),
		"second update inside the window is suppressed")

	// A chatty neighbour must not consume another job's budget.
	assert.True(t, h.shouldForward(wsJob("job_b", models.JobStatusRunning)))

	// Terminal snapshots always pass and release the job's limiter.
	assert.True(t, h.shouldForward(wsJob("job_a", models.JobStatusFailed)))
	h.throttleMu.Lock()
	_, held := h.throttlers["job_a"]
	h.throttleMu.Unlock()
	assert.False(t, held)

	// Pending snapshots are never throttled.
	assert.True(t, h.shouldForward(wsJob("job_c", models.JobStatusPending)))
}

func TestWebSocketHandler_NoThrottleConfigured(t *testing.T) {
	h := NewWebSocketHandler(nil, arbor.NewLogger(), nil)
	t.Cleanup(h.Close)

	for i := 0; i < 3; i++ {
		assert.True(t, h.shouldForward(wsJob("job_a", models.JobStatusRunning)))
	}
}
