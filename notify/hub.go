// Package notify fans persisted vulnerability changes out to live
// subscribers: WebSocket clients, Kafka topics, and Slack.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// sendBuffer is the per-client queue depth. A client that falls this far
// behind is dropped rather than allowed to stall the broadcast.
const sendBuffer = 64

// StreamMessage is the envelope pushed to WebSocket clients.
type StreamMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Stream message types.
const (
	StreamVulnerability = "vulnerability"
	StreamAlert         = "alert"
)

// Client is one connected WebSocket subscriber. Send is drained by the
// connection's writer goroutine.
type Client struct {
	ID          string
	Send        chan []byte
	MinSeverity model.Severity
}

// Hub tracks connected clients and broadcasts without ever blocking on a
// slow one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client and returns it with its send channel allocated.
func (h *Hub) Register(id string, minSeverity model.Severity) *Client {
	c := &Client{
		ID:          id,
		Send:        make(chan []byte, sendBuffer),
		MinSeverity: minSeverity,
	}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	h.logger.Infof("websocket client %s connected", id)
	return c
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		close(c.Send)
		h.logger.Infof("websocket client %s disconnected", id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastVulnerability pushes a vulnerability change to every client whose
// severity filter admits it.
func (h *Hub) BroadcastVulnerability(v *model.Vulnerability) {
	payload, err := json.Marshal(StreamMessage{
		Type:      StreamVulnerability,
		Timestamp: time.Now().UTC(),
		Data:      v,
	})
	if err != nil {
		h.logger.Warnf("failed to marshal vulnerability broadcast: %v", err)
		return
	}
	h.broadcast(payload, v.Severity)
}

// BroadcastAlert pushes an alert to every connected client.
func (h *Hub) BroadcastAlert(a *model.Alert) {
	payload, err := json.Marshal(StreamMessage{
		Type:      StreamAlert,
		Timestamp: time.Now().UTC(),
		Data:      a,
	})
	if err != nil {
		h.logger.Warnf("failed to marshal alert broadcast: %v", err)
		return
	}
	h.broadcast(payload, "")
}

func (h *Hub) broadcast(payload []byte, severity model.Severity) {
	h.mu.RLock()
	var stalled []string
	for id, c := range h.clients {
		if severity != "" && c.MinSeverity != "" && severity.Rank() < c.MinSeverity.Rank() {
			continue
		}
		select {
		case c.Send <- payload:
		default:
			stalled = append(stalled, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stalled {
		h.logger.Warnf("dropping stalled websocket client %s", id)
		h.Unregister(id)
	}
}
