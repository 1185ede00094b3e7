package statusapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/open-uav/precision-lander/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessageType identifies what a broadcast message carries.
type wsMessageType string

const (
	wsMessageTypeStatus     wsMessageType = "status"
	wsMessageTypeTransition wsMessageType = "transition"
)

type wsMessage struct {
	Type wsMessageType   `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsClient is one connected status-API WebSocket client. There's no
// per-client subscription filtering, unlike the multi-drone bridge this
// is adapted from: every client gets every broadcast.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// hub fans a single broadcast stream out to every connected client.
type hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

func (h *hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			metrics.Get().WebSocketConnections.Inc()
			log.Printf("[StatusAPI] WebSocket client connected, total: %d", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.Get().WebSocketConnections.Dec()
			}
			h.mu.Unlock()
			log.Printf("[StatusAPI] WebSocket client disconnected, total: %d", len(h.clients))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) broadcastTyped(t wsMessageType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[StatusAPI] failed to marshal broadcast payload: %v", err)
		return
	}
	msg, err := json.Marshal(wsMessage{Type: t, Data: data})
	if err != nil {
		log.Printf("[StatusAPI] failed to marshal broadcast message: %v", err)
		return
	}
	select {
	case h.broadcast <- msg:
		metrics.Get().WebSocketMessages.WithLabelValues(string(t)).Inc()
	default:
		log.Printf("[StatusAPI] broadcast channel full, dropping %s message", t)
	}
}

func (h *hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[StatusAPI] WebSocket upgrade error: %v", err)
		return
	}

	c := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[StatusAPI] WebSocket read error: %v", err)
			}
			break
		}
		// Clients are read-only observers; any inbound frame is discarded
		// once it has kept the connection's read deadline alive.
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
