package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/csgonades/nade-api/nade"
)

const (
	// wsKeepAliveInterval is how often a ping is sent to connected moderators.
	wsKeepAliveInterval = 30 * time.Second
	// wsReadDeadline is the maximum time to wait for a pong before considering the connection dead.
	wsReadDeadline = 90 * time.Second
	// wsWriteTimeout bounds a single write so one slow client cannot stall a broadcast.
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	// The feed is only reachable with a moderator token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Feed event types.
const (
	EventNadeCreated = "nade.created"
	EventNadeStatus  = "nade.status"
)

// FeedEvent is one message on the moderation feed.
type FeedEvent struct {
	Type string     `json:"type"`
	Nade *nade.Nade `json:"nade"`
	At   time.Time  `json:"at"`
}

// feedConn serializes writes to one websocket connection.
type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (fc *feedConn) write(messageType int, data []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	_ = fc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return fc.conn.WriteMessage(messageType, data)
}

// FeedHub keeps the moderators' websocket connections and pushes content
// events to all of them. Create one in main and close it on shutdown.
type FeedHub struct {
	mu    sync.Mutex
	conns map[*feedConn]struct{}
	done  chan struct{}
	once  sync.Once
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		conns: make(map[*feedConn]struct{}),
		done:  make(chan struct{}),
	}
}

func (h *FeedHub) add(fc *feedConn) {
	h.mu.Lock()
	h.conns[fc] = struct{}{}
	h.mu.Unlock()
}

func (h *FeedHub) remove(fc *feedConn) {
	h.mu.Lock()
	delete(h.conns, fc)
	h.mu.Unlock()
}

// Len reports the number of connected clients.
func (h *FeedHub) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends an event to every connected moderator. Connections that
// fail the write are dropped.
func (h *FeedHub) Broadcast(eventType string, n *nade.Nade) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(FeedEvent{Type: eventType, Nade: n, At: time.Now().UTC()})
	if err != nil {
		slog.Error("ws: encode feed event", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*feedConn, 0, len(h.conns))
	for fc := range h.conns {
		targets = append(targets, fc)
	}
	h.mu.Unlock()

	for _, fc := range targets {
		if err := fc.write(websocket.TextMessage, payload); err != nil {
			slog.Debug("ws: dropping feed client", "error", err)
			h.remove(fc)
			_ = fc.conn.Close()
		}
	}
}

// Shutdown closes all active connections and signals handlers to exit.
// Clients receive a going-away close frame first.
func (h *FeedHub) Shutdown() {
	h.mu.Lock()
	for fc := range h.conns {
		_ = fc.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		_ = fc.conn.Close()
	}
	h.conns = make(map[*feedConn]struct{})
	h.mu.Unlock()
	h.once.Do(func() { close(h.done) })
}

// FeedHandler returns a gin handler that upgrades the request and keeps the
// connection registered with the hub until the client goes away.
func FeedHandler(hub *FeedHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		fc := &feedConn{conn: conn}
		hub.add(fc)
		defer func() {
			hub.remove(fc)
			_ = conn.Close()
		}()

		ticker := time.NewTicker(wsKeepAliveInterval)
		defer ticker.Stop()

		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
			return nil
		})

		// The feed is one-way; reads only drive pong handling and close detection.
		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					readErr <- err
					return
				}
			}
		}()

		for {
			select {
			case <-hub.done:
				return
			case <-ticker.C:
				if err := fc.write(websocket.PingMessage, nil); err != nil {
					slog.Debug("ws: keepalive write error", "error", err)
					return
				}
			case err := <-readErr:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
					websocket.CloseNoStatusReceived,
				) {
					slog.Debug("ws: unexpected close", "error", err)
				}
				return
			}
		}
	}
}
