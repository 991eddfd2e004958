// Package ws streams leaderboard changes to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	// must be less than pongWait
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the stream is public and read-only
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is sent on connect and after every accepted score. Version grows
// with every change of the list; a client never receives an older version
// after a newer one.
type Message struct {
	Event       string                 `json:"event"`
	Leaderboard string                 `json:"leaderboard"`
	Version     uint64                 `json:"version"`
	Standings   []leaderboard.Standing `json:"standings"`
}

// Source returns the current list of a leaderboard and its version, or
// false if it does not exist.
type Source func(id string) ([]leaderboard.Entry, uint64, bool)

type Hub struct {
	source Source
	log    *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	sent bool
	last uint64 // version of the last message queued
}

func New(source Source, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		source:  source,
		log:     log,
		clients: make(map[string]map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.closeAll()
	return nil
}

// ServeHTTP subscribes the caller to the leaderboard named by the {id}
// path value. The current standings are sent right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, _, ok := h.source(id); !ok {
		http.Error(w, "leaderboard not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	if !h.register(id, c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	defer h.unregister(id, c)

	// read after register so no accepted score falls between the two; a
	// newer Publish that got in first wins over this read
	if entries, version, ok := h.source(id); ok {
		if data, err := encode(id, version, entries); err == nil {
			h.trySend(id, c, version, data)
		}
	}

	go c.writePump()
	c.readPump()
}

// Publish sends the standings of id at version to its subscribers, skipping
// clients that already got a newer version. Clients whose buffer is full are
// dropped.
func (h *Hub) Publish(id string, version uint64, entries []leaderboard.Entry) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[id]))
	for c := range h.clients[id] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := encode(id, version, entries)
	if err != nil {
		h.log.Error("encode standings", "leaderboard", id, "err", err)
		return
	}
	for _, c := range targets {
		if !h.trySend(id, c, version, data) {
			h.log.Warn("slow websocket client dropped", "leaderboard", id)
			h.unregister(id, c)
		}
	}
}

// Count returns the number of subscribers of id.
func (h *Hub) Count(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

func encode(id string, version uint64, entries []leaderboard.Entry) ([]byte, error) {
	return json.Marshal(Message{
		Event:       "scores",
		Leaderboard: id,
		Version:     version,
		Standings:   leaderboard.Standings(entries),
	})
}

// trySend holds the read lock so send is not closed underneath it. Messages
// not newer than the last one queued for c are discarded.
func (h *Hub) trySend(id string, c *client, version uint64, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[id][c]; !ok {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent && version <= c.last {
		return true
	}
	select {
	case c.send <- data:
		c.sent, c.last = true, version
		return true
	default:
		return false
	}
}

func (h *Hub) register(id string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[id]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[id] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(id string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[id]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, id)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, id)
	}
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames and notices disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
