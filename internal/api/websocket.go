package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/castellan-media/castellan/internal/taskman"
)

// Hub fans events out to connected websocket clients: task status snapshots,
// monitor samples, scan submissions and cancellations.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Broadcast sends an event to every connected client. Slow clients drop
// messages rather than stalling the sender.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RunStatusLoop pushes a task status snapshot to clients every two seconds
// while any are connected. Blocks until stop is closed.
func (h *Hub) RunStatusLoop(tasks *taskman.Manager, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if h.ClientCount() > 0 {
				h.Broadcast("tasks:status", tasks.Status())
			}
		case <-stop:
			return
		}
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("WebSocket accept: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	s.hub.addClient(c)
	log.Printf("WebSocket client connected (%d total)", s.hub.ClientCount())

	// Greet with a current snapshot so the client need not wait for a tick.
	if msg, err := json.Marshal(wsMessage{Event: "tasks:status", Data: s.tasks.Status()}); err == nil {
		c.send <- msg
	}

	ctx := r.Context()

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range c.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.hub.removeClient(c)
	log.Printf("WebSocket client disconnected (%d total)", s.hub.ClientCount())
}
