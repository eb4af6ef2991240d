package websocket

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-authorisation-service/internal/model"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64

	ReasonSessionExpired = "Session has expired."
	ReasonSendFailed     = "Failed to send"
	ReasonDisconnect     = "Client disconnect"
	ReasonShutdown       = "Server shutdown"
)

type closeMessage struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Conn is one live client. It only receives messages whose scope starts
// with the scope it was admitted with.
type Conn struct {
	ID      string
	Created time.Time
	Scope   string
	Session model.Session

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	reason    atomic.Value
	logger    *slog.Logger
}

func newConn(ws *websocket.Conn, scope string, session model.Session, logger *slog.Logger) *Conn {
	c := &Conn{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Scope:   scope,
		Session: session,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) IsInScope(scope string) bool {
	return strings.HasPrefix(scope, c.Scope)
}

func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) CloseReason() string {
	reason, _ := c.reason.Load().(string)
	return reason
}

// Send queues message for the client. A client that cannot keep up is closed.
func (c *Conn) Send(message []byte) {
	if c.Closed() {
		return
	}

	select {
	case c.send <- message:
	default:
		c.Close(ReasonSendFailed)
	}
}

// Close tells the client why it is being dropped and closes the socket.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason.Store(reason)
		c.closed.Store(true)
		close(c.done)
	})
}

// Listen blocks reading client frames until the socket fails or the
// connection is closed, then marks the connection closed.
func (c *Conn) Listen(onMessage func(message []byte)) {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if !c.Closed() {
				c.logger.Warn("websocket unexpectedly disconnected", "conn_id", c.ID, "error", err)
				c.Close(ReasonDisconnect)
			}
			return
		}
		if onMessage != nil {
			onMessage(message)
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close(ReasonSendFailed)
			}
		case <-c.done:
			c.writeClose()
			return
		}
	}
}

func (c *Conn) writeClose() {
	reason := c.CloseReason()
	deadline := time.Now().Add(writeWait)

	if reason != "" && reason != ReasonDisconnect {
		body, _ := json.Marshal(closeMessage{Action: "CLOSE", Reason: reason})
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.WriteMessage(websocket.TextMessage, body)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	}
	_ = c.ws.Close()
}
