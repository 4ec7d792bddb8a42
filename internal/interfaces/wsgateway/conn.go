package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/domain/session"
	"rehearsal-api/internal/domain/song"
	"rehearsal-api/internal/infrastructure/metrics"
)

const (
	sendBuffer     = 32
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandWait    = 15 * time.Second
	reconcileWait  = 10 * time.Second
)

var errConnClosed = errors.New("connection closed")

// inbound is the envelope of every client command.
type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	SongID    string `json:"song_id,omitempty"`
}

type pongEvent struct {
	Type string `json:"type"`
}

// conn is one live rehearsal connection. The principal is immutable for
// its lifetime; currentSession is owned by the read loop and updated
// only through command results.
type conn struct {
	id        string
	ws        *websocket.Conn
	principal principal.Principal
	manager   *session.Manager
	log       zerolog.Logger

	send chan []byte

	mu     sync.RWMutex
	closed bool

	currentSession string
}

func newConn(ws *websocket.Conn, id string, p principal.Principal, manager *session.Manager, log zerolog.Logger) *conn {
	return &conn{
		id:        id,
		ws:        ws,
		principal: p,
		manager:   manager,
		log: log.With().
			Str("connection_id", id).
			Str("user_id", p.UserID).
			Logger(),
		send: make(chan []byte, sendBuffer),
	}
}

// TrySend queues a frame without blocking; a full buffer or closed
// connection drops the frame for this recipient only.
func (c *conn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("read error")
			}
			return
		}
		c.handle(data)
	}
}

// teardown is the disconnect reconciler: an abrupt close synthesizes a
// leave through the same coordinator path as an explicit one.
func (c *conn) teardown() {
	c.close()
	metrics.ActiveConnections.Dec()

	if c.currentSession == "" {
		c.log.Info().Msg("connection closed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconcileWait)
	defer cancel()
	if err := c.manager.Leave(ctx, c.principal, c.currentSession, c.id); err != nil {
		c.log.Warn().Err(err).Str("session_id", c.currentSession).Msg("reconcile disconnect")
	}
	c.log.Info().Str("session_id", c.currentSession).Msg("connection closed")
}

func (c *conn) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("malformed command")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()

	switch msg.Type {
	case "join_session":
		c.handleJoin(ctx, msg)
	case "leave_session":
		c.handleLeave(ctx)
	case "select_song":
		if msg.SessionID == "" || msg.SongID == "" {
			c.sendError("session_id and song_id are required")
			return
		}
		if err := c.manager.SelectSong(ctx, c.principal, msg.SessionID, msg.SongID); err != nil {
			c.sendCommandError(err)
		}
	case "quit_song":
		if msg.SessionID == "" {
			c.sendError("session_id is required")
			return
		}
		if err := c.manager.QuitSong(ctx, c.principal, msg.SessionID); err != nil {
			c.sendCommandError(err)
		}
	case "end_session":
		if msg.SessionID == "" {
			c.sendError("session_id is required")
			return
		}
		if err := c.manager.EndSession(ctx, c.principal, msg.SessionID); err != nil {
			c.sendCommandError(err)
			return
		}
		if c.currentSession == msg.SessionID {
			c.currentSession = ""
		}
	case "ping":
		c.sendEvent(pongEvent{Type: "pong"})
	default:
		c.log.Warn().Str("type", msg.Type).Msg("unknown command")
		c.sendError("unknown command")
	}
}

func (c *conn) handleJoin(ctx context.Context, msg inbound) {
	if msg.SessionID == "" {
		c.sendError("session_id is required")
		return
	}

	// A connection belongs to at most one room; switching rooms leaves
	// the old one first.
	if c.currentSession != "" && c.currentSession != msg.SessionID {
		if err := c.manager.Leave(ctx, c.principal, c.currentSession, c.id); err != nil {
			c.log.Warn().Err(err).Str("session_id", c.currentSession).Msg("leave before join")
		}
		c.currentSession = ""
	}

	if err := c.manager.Join(ctx, c.principal, msg.SessionID, c.id, c); err != nil {
		c.sendCommandError(err)
		return
	}
	c.currentSession = msg.SessionID
}

func (c *conn) handleLeave(ctx context.Context) {
	if c.currentSession == "" {
		c.sendError("not joined to a session")
		return
	}

	sessionID := c.currentSession
	c.currentSession = ""
	if err := c.manager.Leave(ctx, c.principal, sessionID, c.id); err != nil {
		c.sendCommandError(err)
	}
}

func (c *conn) sendEvent(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode event")
		return
	}
	_ = c.TrySend(frame)
}

func (c *conn) sendError(message string) {
	c.sendEvent(session.ErrorEvent{Type: session.EventError, Message: message})
}

// sendCommandError maps domain failures to the human-readable messages
// delivered only to the originating connection.
func (c *conn) sendCommandError(err error) {
	c.sendError(commandErrorMessage(err))
}

func commandErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrForbidden):
		return "Admin privileges required"
	case errors.Is(err, session.ErrNotFound):
		return "Session not found"
	case errors.Is(err, session.ErrInactive):
		return "Session is not active"
	case errors.Is(err, song.ErrNotFound):
		return "Song not found"
	case errors.Is(err, session.ErrVersionConflict):
		return "Conflicting update, please retry"
	case errors.Is(err, session.ErrStoreUnavailable):
		return "Temporary storage failure, please retry"
	case errors.Is(err, context.DeadlineExceeded):
		return "Command timed out"
	default:
		return "Internal error"
	}
}
