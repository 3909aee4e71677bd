package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"railsim/internal/publisher"
)

const (
	writeWait        = 5 * time.Second
	subscriberBuffer = 16
)

// Hub fans published snapshots out to websocket subscribers (the dashboard's
// render adapter). A subscriber that cannot keep up is dropped rather than
// allowed to block the tick loop.
type Hub struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	subs      map[*subscriber]struct{}
	lastFrame []byte
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

type snapshotFrame struct {
	Type   string                 `json:"type"`
	Tick   uint64                 `json:"tick"`
	Agents []publisher.AgentState `json:"agents"`
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// PublishStates implements sim.StateSink.
func (h *Hub) PublishStates(states []publisher.AgentState) {
	frame := snapshotFrame{Type: "snapshot", Agents: states}
	if len(states) > 0 {
		frame.Tick = states[0].Tick
	}
	b, err := json.Marshal(frame)
	if err != nil {
		log.Printf("marshal snapshot frame: %v", err)
		return
	}

	h.mu.Lock()
	h.lastFrame = b
	for s := range h.subs {
		select {
		case s.send <- b:
		default:
			// subscriber too slow, drop it
			delete(h.subs, s)
			close(s.send)
		}
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of connected websocket clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Serve upgrades the request and streams snapshot frames until the client
// disconnects. The newest frame is sent immediately on subscribe.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	if h.lastFrame != nil {
		s.send <- h.lastFrame
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go h.writePump(s)
	go h.readPump(s)
}

func (h *Hub) writePump(s *subscriber) {
	defer s.conn.Close()
	for msg := range s.send {
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.unsubscribe(s)
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unsubscribe(s)
			return
		}
	}
}

// readPump discards client messages; the control surface is HTTP, not the
// socket. It exists to observe the close handshake.
func (h *Hub) readPump(s *subscriber) {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			h.unsubscribe(s)
			return
		}
	}
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
	s.conn.Close()
}
