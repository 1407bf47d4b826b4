package chat

import (
	"time"

	"github.com/gorilla/websocket"

	"QTalk/logger"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendQueueSize  = 64
	maxMessageSize = 1 << 20 // matches the REST body limit
)

// wsConn is the slice of *websocket.Conn the hub and write pump touch.
// Tests substitute a fake; production always passes a gorilla conn.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one user session connected to this gateway. One active
// socket per user: registering a newer session for the same user evicts
// the older one.
type Client struct {
	SessionID string
	UserID    string
	conn      wsConn
	send      chan []byte
	done      chan struct{}
}

func NewClient(sessionID, userID string, conn wsConn) *Client {
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump. A full queue drops the frame:
// pushes are best-effort, the durable record is the source of truth.
// Safe to race close: shutdown is signalled through done and the send
// channel is never closed, so a late enqueue is dropped, not a panic.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		logger.Warnf("ws send queue full, dropping frame user=%s session=%s", c.UserID, c.SessionID)
		return false
	}
}

// writePump is the single writer for the connection. Runs until done is
// closed (hub eviction or teardown) or a write fails (peer gone).
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("ws write failed: " + err.Error())
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// close releases the write pump. Only the goroutine that removes the
// client from the hub's maps calls it, so done is closed exactly once.
// The send channel stays open; concurrent enqueues observe done instead.
func (c *Client) close() {
	close(c.done)
}
