// Package broadcast fans tick snapshots out to websocket subscribers. The
// hub is a non-blocking sink: a slow client is dropped rather than allowed
// to stall the simulation loop.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neg-0/overwatch-sub002/internal/logging"
	"github.com/neg-0/overwatch-sub002/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Hub tracks websocket clients keyed by the scenario they subscribed to and
// relays tick snapshots to them.
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{} // scenario ID -> clients
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs an empty hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Publish sends a snapshot to every subscriber of the scenario. It never
// blocks: clients whose send buffer is full are disconnected.
func (h *Hub) Publish(scenarioID string, snap model.TickSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.log.Warn(context.Background(), "snapshot encode failed", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[scenarioID] {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(scenarioID, c)
		}
	}
}

// ServeHTTP upgrades the request to a websocket subscribed to the scenario
// named by the "scenario" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.URL.Query().Get("scenario")
	if scenarioID == "" {
		http.Error(w, "missing scenario parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	if h.clients[scenarioID] == nil {
		h.clients[scenarioID] = make(map[*client]struct{})
	}
	h.clients[scenarioID][c] = struct{}{}
	h.mu.Unlock()

	h.log.Info(r.Context(), "websocket subscriber connected",
		logging.String("scenario_id", scenarioID),
		logging.String("remote", r.RemoteAddr),
	)

	go h.writePump(c)
	go h.readPump(scenarioID, c)
}

// SubscriberCount reports how many clients follow the scenario.
func (h *Hub) SubscriberCount(scenarioID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[scenarioID])
}

// Close disconnects every client and rejects future subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for scenarioID, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, scenarioID)
	}
}

// dropLocked removes the client and closes its send channel, which makes
// writePump close the connection. Caller holds h.mu.
func (h *Hub) dropLocked(scenarioID string, c *client) {
	if _, ok := h.clients[scenarioID][c]; !ok {
		return
	}
	delete(h.clients[scenarioID], c)
	if len(h.clients[scenarioID]) == 0 {
		delete(h.clients, scenarioID)
	}
	close(c.send)
}

func (h *Hub) drop(scenarioID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(scenarioID, c)
}

// readPump discards inbound frames; subscribers are consumers only. It
// exists to process control frames and detect closed connections.
func (h *Hub) readPump(scenarioID string, c *client) {
	defer h.drop(scenarioID, c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
