package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // localhost-bound server, same trust model as CORS
	},
}

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// eventEnvelope wraps every message sent over the events websocket.
type eventEnvelope struct {
	Type string      `json:"type"` // progress | completed | run_finished
	Data interface{} `json:"data"`
}

// EventHub streams engine events to websocket clients. It implements
// domain.EventSink; the engine's worker goroutine never blocks on a slow
// client, late messages are dropped instead.
type EventHub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewEventHub creates an event hub.
func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
	}
}

func (h *EventHub) Progress(e domain.ProgressEvent) {
	h.broadcast("progress", e)
}

func (h *EventHub) Completed(n domain.CompletionNotice) {
	h.broadcast("completed", n)
}

func (h *EventHub) RunFinished(s domain.RunSummary) {
	h.broadcast("run_finished", s)
}

func (h *EventHub) broadcast(kind string, data interface{}) {
	payload, err := json.Marshal(eventEnvelope{Type: kind, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("type", kind), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// Slow client, drop the event rather than stall the run.
		}
	}
}

// ClientCount reports how many websocket clients are connected.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) register() chan []byte {
	ch := make(chan []byte, clientSendBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unregister(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// HandleWebSocket handles GET /api/v1/events. Each connection gets a
// dedicated writer loop; reads only serve close detection and pongs.
func (h *EventHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.register()
	defer h.unregister(ch)

	h.logger.Info("Event stream client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
