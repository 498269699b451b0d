package testutil

import (
	"encoding/binary"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/fairway/internal/protocol/packet"
)

// WSClient is a websocket game client for integration testing. Each binary
// message is one frame.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials url, which may use the http:// scheme of an httptest server.
//
// Precondition: url must point at a listening websocket route.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	url = "ws" + strings.TrimPrefix(url, "http")
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, http.Header{})
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes one frame.
func (c *WSClient) Send(frame []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.t.Fatalf("sending frame: %v", err)
	}
}

// SendPacket writes the frame held by w.
func (c *WSClient) SendPacket(w *packet.Writer) {
	c.t.Helper()
	c.Send(w.Bytes())
}

// ReadFrame reads the next frame or fails the test on timeout.
func (c *WSClient) ReadFrame(timeout time.Duration) []byte {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return data
}

// ReadUntil reads frames until one carries op, discarding the rest.
//
// Postcondition: Returns the matching frame, or fails on timeout.
func (c *WSClient) ReadUntil(op packet.Opcode, timeout time.Duration) []byte {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	_ = c.conn.SetReadDeadline(deadline)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until opcode %s: %v", op, err)
		}
		if len(data) >= 2 && packet.Opcode(binary.LittleEndian.Uint16(data)) == op {
			return data
		}
	}
}

// ExpectClosed fails the test unless the server closes the connection within timeout.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || !isTimeout(err) {
				return
			}
			c.t.Fatalf("connection still open after %s", timeout)
		}
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
