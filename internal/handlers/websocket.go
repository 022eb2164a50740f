// -----------------------------------------------------------------------
// WebSocket Handler - realtime job snapshot relay for UI clients
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for all messages pushed to clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusPayload is the initial handshake message. Clients compare
// ServerInstanceID across reconnects to detect a server restart and
// discard stale local state.
type StatusPayload struct {
	Service          string `json:"service"`
	Version          string `json:"version"`
	ServerInstanceID string `json:"serverInstanceId"`
}

// WebSocketHandler broadcasts job state snapshots to connected clients.
// Every job mutation produces a snapshot; progress-only updates for
// running jobs are throttled so a fast poller cannot flood slow clients.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	jobService       interfaces.JobService
	unsubscribe      func()
	serverInstanceID string

	// Progress limiters are kept per job so one chatty job cannot eat
	// the budget of another that updates rarely. Entries are dropped on
	// terminal snapshots.
	throttleInterval time.Duration
	throttleMu       sync.Mutex
	throttlers       map[string]*rate.Limiter
}

// NewWebSocketHandler creates the relay and subscribes it to job
// snapshots. Call Close to detach the subscription on shutdown.
func NewWebSocketHandler(jobService interfaces.JobService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		jobService:       jobService,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")

	if config != nil && config.ProgressThrottle > 0 {
		h.throttleInterval = config.ProgressThrottle
		h.throttlers = make(map[string]*rate.Limiter)
		logger.Debug().
			Str("interval", config.ProgressThrottle.String()).
			Msg("Per-job throttler initialized for progress updates")
	}

	if jobService != nil {
		h.unsubscribe = jobService.Subscribe(h.onJobSnapshot)
	}

	return h
}

// Close detaches the job subscription and disconnects all clients.
func (h *WebSocketHandler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendStatus(conn)
	h.sendCurrentJobs(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// onJobSnapshot receives every job mutation from the job service.
// Creation and terminal transitions always go out; intermediate progress
// updates pass through the job's own throttler.
func (h *WebSocketHandler) onJobSnapshot(job models.Job) {
	if !h.shouldForward(job) {
		return
	}
	h.broadcastJobUpdate(job)
}

// shouldForward applies the per-job progress throttle. Terminal
// snapshots always pass and release the job's limiter.
func (h *WebSocketHandler) shouldForward(job models.Job) bool {
	if h.throttlers == nil {
		return true
	}

	h.throttleMu.Lock()
	defer h.throttleMu.Unlock()

	if job.IsTerminal() {
		delete(h.throttlers, job.ID)
		return true
	}
	if job.Status != models.JobStatusRunning {
		return true
	}

	limiter, ok := h.throttlers[job.ID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttleInterval), 1)
		h.throttlers[job.ID] = limiter
	}
	return limiter.Allow()
}

// broadcastJobUpdate sends a job snapshot to all connected clients.
func (h *WebSocketHandler) broadcastJobUpdate(job models.Job) {
	msg := WSMessage{
		Type:    "job_update",
		Payload: job,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal job update message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send job update to client")
		}
	}
}

// sendStatus sends the handshake message to a newly connected client.
func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "status",
		Payload: StatusPayload{
			Service:          "ONLINE",
			Version:          common.GetVersion(),
			ServerInstanceID: h.serverInstanceID,
		},
	}

	h.sendToClient(conn, msg, "initial status")
}

// sendCurrentJobs replays the current job list so a freshly connected
// client does not have to wait for the next mutation to render state.
func (h *WebSocketHandler) sendCurrentJobs(conn *websocket.Conn) {
	if h.jobService == nil {
		return
	}

	jobs := h.jobService.ListJobs()
	msg := WSMessage{
		Type:    "job_list",
		Payload: jobs,
	}

	h.sendToClient(conn, msg, "job list")
}

func (h *WebSocketHandler) sendToClient(conn *websocket.Conn, msg WSMessage, what string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msgf("Failed to marshal %s message", what)
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex == nil {
		return
	}

	mutex.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()

	if err != nil {
		h.logger.Warn().Err(err).Msgf("Failed to send %s to client", what)
	}
}
