// Package gateway serves the dashboard HTTP API and pushes refresh events to
// websocket clients.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"energy-dashboard/internal/events"
	"energy-dashboard/internal/metrics"

	"github.com/gorilla/websocket"
)

// DefaultReplaySize is the number of envelopes kept for resuming clients.
const DefaultReplaySize = 64

// Hub manages WebSocket clients and fans refresh events out to them.
// It acts as a compositor:
//   - Broadcaster: envelope construction + fan-out
//   - ReplayBuffer: recent envelopes for ?last_seq= resume
//   - LatencyTracker: event-to-delivery latency
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	// mu guards clients, seq and latest and serializes broadcasts with
	// client registration so a resuming client never sees seqs out of order.
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	latest  []byte

	replay *ReplayBuffer

	Latency     *LatencyTracker
	Broadcaster *Broadcaster
}

var _ events.Publisher = (*Hub)(nil)

// NewHub creates a hub keeping replaySize envelopes for resume.
// checkOrigin may be nil to accept every origin.
func NewHub(log *slog.Logger, m *metrics.Metrics, replaySize int, checkOrigin func(*http.Request) bool) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	h := &Hub{
		logger:  log.With(slog.String("component", "ws_hub")),
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin:       checkOrigin,
			EnableCompression: true,
		},
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		Latency: NewLatencyTracker(1000),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Publish implements events.Publisher by broadcasting e to every client.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	h.Broadcaster.Broadcast(e)
	return nil
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.setClientGauge()
	h.mu.Unlock()
	h.logger.Info("ws hub stopped")
	return nil
}

// HandleWS upgrades the request and registers the client. A last_seq query
// parameter replays buffered envelopes newer than that sequence.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	var lastSeq int64
	if s := r.URL.Query().Get("last_seq"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
			lastSeq = n
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	client.sendInitialState(lastSeq)
	h.clients[client] = true
	count := len(h.clients)
	h.setClientGauge()
	h.mu.Unlock()

	h.logger.Info("ws client connected", slog.Int("clients", count), slog.Int64("last_seq", lastSeq))

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub. Removing an unknown client is
// a no-op.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.setClientGauge()
}

// setClientGauge must be called with mu held.
func (h *Hub) setClientGauge() {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last broadcast envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// HubStats is reported by the status endpoint.
type HubStats struct {
	Clients    int     `json:"clients"`
	Seq        int64   `json:"seq"`
	Buffered   int     `json:"replay_buffered"`
	LatencyP50 float64 `json:"latency_p50_ms"`
	LatencyP95 float64 `json:"latency_p95_ms"`
	LatencyP99 float64 `json:"latency_p99_ms"`
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	st := HubStats{Clients: len(h.clients), Seq: h.seq}
	h.mu.RUnlock()
	st.Buffered = h.replay.Len()
	st.LatencyP50, st.LatencyP95, st.LatencyP99 = h.Latency.Percentiles()
	return st
}
