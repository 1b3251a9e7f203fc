package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	// DefaultMaxFrameSize bounds one inbound frame. A larger frame closes the
	// socket with 1009 (message too big).
	DefaultMaxFrameSize = 64 * 1024
	sendBufferSize      = 64
)

// Client is one authenticated socket. RoomID and UserID are fixed at handshake.
type Client struct {
	conn   *connWrapper
	send   chan *Frame
	ID     string
	RoomID string
	UserID string
	logger *zap.SugaredLogger

	readLimit int64
	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, roomID, userID string, logger *zap.SugaredLogger) *Client {
	return &Client{
		conn:   newConnWrapper(conn),
		send:   make(chan *Frame, sendBufferSize),
		ID:     uuid.NewString(),
		RoomID: roomID,
		UserID: userID,
		logger: logger,
		closed: make(chan struct{}),

		readLimit: DefaultMaxFrameSize,
	}
}

// SetReadLimit overrides DefaultMaxFrameSize. Call it before ReadPump.
func (c *Client) SetReadLimit(n int64) {
	if n > 0 {
		c.readLimit = n
	}
}

// Emit queues a frame for this socket. Frames for a closed or backed-up
// socket are dropped and Emit reports false.
func (c *Client) Emit(f *Frame) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	case <-c.closed:
		return false
	default:
		c.logger.Warnw("client buffer full, dropping frame", "socketId", c.ID, "event", f.Event)
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// ReadPump hands every inbound frame to onFrame, in arrival order, until the
// socket fails or closes. The returned error is the reason for disconnect,
// nil when this side closed the socket.
func (c *Client) ReadPump(onFrame func(Frame)) error {
	defer c.Close()

	raw := c.conn.conn
	raw.SetReadLimit(c.readLimit)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if c.IsClosed() {
				return nil
			}
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.Emit(NewError(CodeMalformedFrame, "frames must be {\"event\": string, \"data\": any}"))
			continue
		}

		onFrame(frame)
	}
}

// WritePump drains queued frames to the socket and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame, time.Now().Add(writeWait)); err != nil {
				c.logger.Debugw("ws write error", "socketId", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, time.Now().Add(writeWait)); err != nil {
				c.logger.Debugw("ping error", "socketId", c.ID, "error", err)
				return
			}

		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage, time.Now().Add(writeWait))
			return
		}
	}
}
