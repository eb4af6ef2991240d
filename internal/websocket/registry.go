// Package websocket keeps the live client connections and fans events out
// to the ones whose scope covers them.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
)

const sweepInterval = 30 * time.Second

// Registry owns every live connection. Connections that closed on their own
// are pruned the next time the registry is iterated.
type Registry struct {
	mu       sync.Mutex
	conns    map[string]*Conn
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry accepts handshakes from the same origin and from
// allowedOrigins, which uses the CORS_ORIGINS format ("*" allows any).
func NewRegistry(logger *slog.Logger, allowedOrigins ...string) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		conns: map[string]*Conn{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		now:    time.Now,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		for _, candidate := range allowed {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				return true
			}
		}

		parsed, err := url.Parse(origin)
		return err == nil && strings.EqualFold(parsed.Host, r.Host)
	}
}

// Upgrade accepts the websocket handshake and registers the connection.
func (r *Registry) Upgrade(w http.ResponseWriter, req *http.Request, scope string, session model.Session) (*Conn, error) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil, err
	}
	return r.Add(ws, scope, session), nil
}

func (r *Registry) Add(ws *websocket.Conn, scope string, session model.Session) *Conn {
	conn := newConn(ws, scope, session, r.logger)

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()

	r.logger.Info("websocket connected", "conn_id", conn.ID, "scope", scope, "session_id", session.ID)
	return conn
}

func (r *Registry) Remove(id string, reason string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if ok {
		conn.Close(reason)
		r.logger.Info("websocket removed", "conn_id", id, "reason", reason)
	}
}

// Connections returns the open connections. Closed ones are dropped and
// those whose session has expired are closed first.
func (r *Registry) Connections() []*Conn {
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	open := make([]*Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		if !conn.Closed() && !conn.Session.Expires.After(now) {
			conn.Close(ReasonSessionExpired)
		}
		if conn.Closed() {
			delete(r.conns, id)
			continue
		}
		open = append(open, conn)
	}
	return open
}

func (r *Registry) InScope(scope string) []*Conn {
	var matched []*Conn
	for _, conn := range r.Connections() {
		if conn.IsInScope(scope) {
			matched = append(matched, conn)
		}
	}
	return matched
}

func (r *Registry) Broadcast(message []byte) {
	for _, conn := range r.Connections() {
		conn.Send(message)
	}
}

func (r *Registry) BroadcastToScope(scope string, message []byte) {
	for _, conn := range r.InScope(scope) {
		conn.Send(message)
	}
}

func (r *Registry) Len() int {
	return len(r.Connections())
}

// Run forwards bus events to the connections whose scope covers the event
// type until ctx is done, then closes every connection. Expired sessions are
// swept every sweepInterval even when no event arrives.
func (r *Registry) Run(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll(ReasonShutdown)
			return
		case <-ticker.C:
			r.Connections()
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				r.logger.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			r.BroadcastToScope(string(e.Type), message)
		}
	}
}

func (r *Registry) closeAll(reason string) {
	r.mu.Lock()
	conns := r.conns
	r.conns = map[string]*Conn{}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(reason)
	}
}
