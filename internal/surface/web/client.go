package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcncl/gotyper-live/internal/models"
	"github.com/mcncl/gotyper-live/internal/notice"
	"github.com/mcncl/gotyper-live/internal/session"
)

// WebSocket timeouts following the gorilla chat example
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024 * 1024
)

// Message types exchanged with the page
const (
	MessageEdit  = "edit"
	MessageCopy  = "copy"
	MessageState = "state"
)

// ClientMessage is sent by the page
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StateMessage is sent to the page after every change
type StateMessage struct {
	Type     string             `json:"type"`
	Session  models.EditSession `json:"session"`
	Copied   bool               `json:"copied"`
	Copyable bool               `json:"copyable"`
}

// client is one connected editing surface
type client struct {
	server     *Server
	conn       *websocket.Conn
	id         string
	controller *session.Controller
	notice     *notice.Notice

	mu     sync.Mutex
	latest models.EditSession
	copied bool

	// dirty holds at most one pending "state changed" signal; the write pump
	// always sends the newest state
	dirty     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(s *Server, conn *websocket.Conn, id string) *client {
	c := &client{
		server: s,
		conn:   conn,
		id:     id,
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	c.controller = session.New(s.opts.Converter,
		session.WithDebounce(s.opts.Debounce),
		session.WithLogger(s.logger.With("client_id", id)),
		session.WithMetrics(s.opts.Metrics),
	)
	c.notice = notice.New(s.opts.NoticeDelay, notice.OnChange(c.onCopiedChange))

	c.latest = c.controller.Snapshot()
	c.controller.Subscribe(c.onSnapshot)
	s.opts.Metrics.SurfaceOpened()

	c.markDirty()
	return c
}

func (c *client) onSnapshot(s models.EditSession) {
	c.mu.Lock()
	if s.Version > c.latest.Version {
		c.latest = s
	}
	c.mu.Unlock()
	c.markDirty()
}

func (c *client) onCopiedChange(active bool) {
	c.mu.Lock()
	c.copied = active
	c.mu.Unlock()
	c.markDirty()
}

func (c *client) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *client) state() StateMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StateMessage{
		Type:     MessageState,
		Session:  c.latest,
		Copied:   c.copied,
		Copyable: c.latest.Copyable(),
	}
}

// close releases the session exactly once
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.controller.Close()
		c.notice.Stop()
		c.server.opts.Metrics.SurfaceClosed()
		c.server.logger.Infow("Editing surface disconnected", "client_id", c.id)
	})
}

// readPump handles reading messages from the WebSocket connection
func (c *client) readPump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.logger.Warnw("JSON unmarshal error", "client_id", c.id, "error", err)
			continue
		}
		c.route(msg)
	}
}

func (c *client) route(msg ClientMessage) {
	switch msg.Type {
	case MessageEdit:
		c.controller.OnTextChanged(msg.Text)
	case MessageCopy:
		if !c.controller.Snapshot().Copyable() {
			c.server.logger.Debugw("Ignoring copy with nothing to copy", "client_id", c.id)
			return
		}
		c.notice.Activate()
	default:
		c.server.logger.Warnw("Unknown message type", "client_id", c.id, "type", msg.Type)
	}
}

// writePump sends state updates and keepalive pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-c.done:
			return
		case <-c.dirty:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(c.state()); err != nil {
				c.server.logger.Warnw("State write error", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
