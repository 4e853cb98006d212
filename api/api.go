// Package api is the HTTP/WebSocket collaborator surface (§6): it
// pushes every DecodedKey event to connected browser clients over a
// WebSocket, exposes the Prometheus metrics registry, serves the
// learned-key store for a small management UI, and advertises itself
// over mDNS/DNS-SD. None of it participates in C1-C5; it only
// observes decode.Key events and store.Store state.
//
// The WebSocket hub is grounded in the teacher's use of
// github.com/gorilla/websocket elsewhere in the pack (the
// ka9q_ubersdr broadcast-to-many-clients hub), generalized from audio
// frames to JSON DecodedKey events. The service announcement is
// adapted from the teacher's own src/dns_sd.go, which wraps
// github.com/brutella/dnssd the same way.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doismellburning/gatekeeper/decode"
	"github.com/doismellburning/gatekeeper/store"
)

const (
	writeWait      = 5 * time.Second
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // local network management UI, no auth boundary to protect
}

// Hub fans out decode.Key events to every connected WebSocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *log.Logger
}

type client struct {
	conn *websocket.Conn
	send chan decode.Key
}

// NewHub returns an empty Hub ready to accept connections and Broadcasts.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

// Broadcast pushes key to every currently connected client. Slow
// clients are dropped rather than allowed to back-pressure the decode
// loop: the channel send is non-blocking.
func (h *Hub) Broadcast(key decode.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- key:
		default:
			h.logger.Warn("dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

// ServeHTTP upgrades the connection and registers it with the hub
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan decode.Key, clientSendSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// writePump serializes every queued key to JSON and sends it, closing
// the connection when the channel is closed by removeLocked.
func (h *Hub) writePump(c *client) {
	for key := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(key); err != nil {
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			return
		}
	}
}

// readPump exists only to notice disconnects (gorilla requires
// reading to detect a close frame); this surface never accepts
// client-originated messages.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			h.removeLocked(c)
		}
		h.mu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Server bundles the HTTP mux for the decode event feed, metrics, and
// key-store management endpoints named in §6.
type Server struct {
	Hub    *Hub
	Store  *store.Store
	Engine interface{ SetLearningMode(bool) }
}

// Mux builds the http.Handler serving every collaborator HTTP route.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", s.Hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/keys", s.handleKeys)
	mux.HandleFunc("/learning", s.handleLearning)
	return mux
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Store.List())
}

func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Engine.SetLearningMode(body.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

// Announce advertises the collaborator HTTP server over mDNS/DNS-SD
// under _gatekeeper._tcp, the same brutella/dnssd responder pattern
// the teacher uses for its KISS-over-TCP service. The returned cancel
// function stops the responder.
func Announce(name string, port int, logger *log.Logger) (cancel func(), err error) {
	cfg := dnssd.Config{Name: name, Type: "_gatekeeper._tcp", Port: port}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, err
	}
	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, err
	}
	if _, err := responder.Add(svc); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dns-sd responder stopped", "err", err)
		}
	}()
	return cancel, nil
}
