package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 64
)

// MessageType tags every message pushed to dashboards.
type MessageType string

const (
	MessagePrediction MessageType = "prediction"
	MessageHello      MessageType = "hello"
)

// Message is the envelope written to each websocket client.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PredictionEvent is broadcast after every served prediction.
type PredictionEvent struct {
	PredictionID  string  `json:"prediction_id"`
	Model         string  `json:"model"`
	Label         string  `json:"label"`
	DisplayName   string  `json:"display_name"`
	Probabilities any     `json:"probabilities"`
	LatencyMillis float64 `json:"latency_ms"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans prediction events out to connected dashboards. Slow clients are
// dropped rather than allowed to block a broadcast.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	metrics    *Metrics
	done       chan struct{}
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *zap.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.clientConnected()
			}
			h.logger.Info("feed client connected", zap.String("client", c.id), zap.Int("clients", n))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Warn("dropping slow feed client", zap.String("client", c.id))
				h.remove(c)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
				if h.metrics != nil {
					h.metrics.clientDisconnected()
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.metrics != nil {
		h.metrics.clientDisconnected()
	}
	h.logger.Info("feed client disconnected", zap.String("client", c.id), zap.Int("clients", n))
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize), id: uuid.NewString()}
	if hello, err := newMessage(MessageHello, map[string]string{"client_id": c.id}); err == nil {
		c.send <- hello
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// PublishPrediction queues ev for every connected client. It never blocks;
// when the queue is full the event is dropped.
func (h *Hub) PublishPrediction(ev PredictionEvent) {
	msg, err := newMessage(MessagePrediction, ev)
	if err != nil {
		h.logger.Error("encode prediction event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("feed broadcast queue is full, dropping event", zap.String("prediction_id", ev.PredictionID))
	}
}

func newMessage(t MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: t, ID: uuid.NewString(), Timestamp: time.Now().UTC(), Data: raw})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client input; it only exists to notice disconnects and
// answer pongs.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("feed client read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}
