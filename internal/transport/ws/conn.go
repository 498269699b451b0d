// Package ws carries game frames over websocket: each binary message is
// exactly one frame.
package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned when sending on a disconnected Conn.
	ErrClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when the outbound queue cannot take another frame.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Options tune a single connection.
type Options struct {
	// ReadTimeout is the longest the peer may stay silent. Zero disables
	// read deadlines and keepalive pings.
	ReadTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// MaxFrameSize is the read limit per message.
	MaxFrameSize int64
	// SendBuffer is the outbound queue length.
	SendBuffer int
}

// Conn is the transport side of one player connection. Frames queued with
// Send are written by a single writer goroutine in queue order.
type Conn struct {
	ws     *websocket.Conn
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	done chan struct{}
}

// NewConn wraps an upgraded websocket connection.
//
// Precondition: ws must be non-nil and opts.SendBuffer > 0.
// Postcondition: Returns an open Conn; Run must be called to move frames.
func NewConn(ws *websocket.Conn, opts Options, logger *zap.Logger) *Conn {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Conn{
		ws:     ws,
		opts:   opts,
		logger: logger,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Send queues frame for delivery.
//
// Postcondition: frame is enqueued, or ErrClosed / ErrSendBufferFull is returned.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w (%d frames)", ErrSendBufferFull, cap(c.send))
	}
}

// SendRaw queues frame for delivery. Websocket frames are not encrypted by
// the game layer, so this is the same as Send.
func (c *Conn) SendRaw(frame []byte) error {
	return c.Send(frame)
}

// Disconnect stops accepting frames. The writer drains the queue, sends a
// close message and closes the socket.
//
// Postcondition: Further Send calls return ErrClosed. Safe to call repeatedly.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// IsClosed reports whether Disconnect has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed once the writer has exited and the socket is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// readLoop delivers each binary message to onFrame until the socket fails.
func (c *Conn) readLoop(onFrame func([]byte)) error {
	if c.opts.MaxFrameSize > 0 {
		c.ws.SetReadLimit(c.opts.MaxFrameSize)
	}
	if c.opts.ReadTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		})
	}

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if c.opts.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		}
		if kind != websocket.BinaryMessage {
			c.logger.Debug("ignoring non-binary message", zap.Int("type", kind))
			continue
		}
		onFrame(data)
	}
}

// writeLoop writes queued frames and keepalive pings until Disconnect.
func (c *Conn) writeLoop() {
	defer close(c.done)
	defer c.ws.Close()

	var ping <-chan time.Time
	if c.opts.ReadTimeout > 0 {
		ticker := time.NewTicker(c.opts.ReadTimeout * 9 / 10)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame, ok := <-c.send:
			c.setWriteDeadline()
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.Disconnect()
				c.drain()
				return
			}
		case <-ping:
			c.setWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Disconnect()
				c.drain()
				return
			}
		}
	}
}

// drain discards frames still queued after a write failure.
func (c *Conn) drain() {
	for range c.send {
	}
}

func (c *Conn) setWriteDeadline() {
	if c.opts.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
}
