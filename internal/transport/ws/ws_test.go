package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/fairway/internal/testutil"
)

// echoSession sends every inbound frame straight back and records teardown.
type echoSession struct {
	conn *Conn

	mu     sync.Mutex
	frames [][]byte
	closed chan struct{}
	once   sync.Once
}

func (s *echoSession) HandleInbound(_ context.Context, frame []byte) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	if len(frame) == 2 && frame[0] == 0xFF {
		s.conn.Disconnect()
		return
	}
	_ = s.conn.Send(frame)
}

func (s *echoSession) Disconnect(context.Context) {
	s.once.Do(func() { close(s.closed) })
}

func (s *echoSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newEchoServer(t *testing.T) (*httptest.Server, chan *echoSession) {
	t.Helper()
	sessions := make(chan *echoSession, 4)
	h := NewHandler(Options{
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxFrameSize: 64,
		SendBuffer:   8,
	}, func(c *Conn) Session {
		s := &echoSession{conn: c, closed: make(chan struct{})}
		sessions <- s
		return s
	}, zaptest.NewLogger(t))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, sessions
}

func awaitSession(t *testing.T, ch chan *echoSession) *echoSession {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no session accepted")
		return nil
	}
}

func awaitClosed(t *testing.T, s *echoSession) {
	t.Helper()
	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not disconnected")
	}
}

func TestHandlerEchoesFramesInOrder(t *testing.T) {
	srv, sessions := newEchoServer(t)
	client := testutil.NewWSClient(t, srv.URL)
	awaitSession(t, sessions)

	for i := byte(1); i <= 5; i++ {
		client.Send([]byte{i, 0x00, i})
	}
	for i := byte(1); i <= 5; i++ {
		assert.Equal(t, []byte{i, 0x00, i}, client.ReadFrame(time.Second))
	}
}

func TestHandlerClientCloseDisconnectsSession(t *testing.T) {
	srv, sessions := newEchoServer(t)
	client := testutil.NewWSClient(t, srv.URL)
	s := awaitSession(t, sessions)

	client.Close()
	awaitClosed(t, s)
}

func TestHandlerServerDisconnectClosesSocket(t *testing.T) {
	srv, sessions := newEchoServer(t)
	client := testutil.NewWSClient(t, srv.URL)
	s := awaitSession(t, sessions)

	client.Send([]byte{0xFF, 0x00})
	client.ExpectClosed(2 * time.Second)
	awaitClosed(t, s)
}

func TestHandlerOversizedFrameDisconnects(t *testing.T) {
	srv, sessions := newEchoServer(t)
	client := testutil.NewWSClient(t, srv.URL)
	s := awaitSession(t, sessions)

	client.Send(make([]byte, 128))
	awaitClosed(t, s)
	assert.Zero(t, s.count())
}

func TestHandlerIgnoresTextMessages(t *testing.T) {
	srv, sessions := newEchoServer(t)
	url := "ws" + srv.URL[len("http"):]
	raw, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer raw.Close()
	s := awaitSession(t, sessions)

	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, raw.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x00}))

	_ = raw.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := raw.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, data)
	assert.Equal(t, 1, s.count())
}

func TestConnSendAfterDisconnect(t *testing.T) {
	c := NewConn(nil, Options{SendBuffer: 1}, zaptest.NewLogger(t))
	c.Disconnect()
	c.Disconnect()
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Send([]byte{1, 0}), ErrClosed)
	assert.ErrorIs(t, c.SendRaw([]byte{1, 0}), ErrClosed)
}

func TestConnSendBufferFull(t *testing.T) {
	c := NewConn(nil, Options{SendBuffer: 2}, zaptest.NewLogger(t))
	require.NoError(t, c.Send([]byte{1, 0}))
	require.NoError(t, c.Send([]byte{2, 0}))
	assert.ErrorIs(t, c.Send([]byte{3, 0}), ErrSendBufferFull)
}

func TestAcceptorServesAndStops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	a := NewAcceptor("127.0.0.1:0", mux, time.Second, zaptest.NewLogger(t))

	errc := make(chan error, 1)
	go func() { errc <- a.ListenAndServe() }()

	require.Eventually(t, func() bool { return a.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, a.IsRunning())

	resp, err := http.Get("http://" + a.Addr() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	a.Stop()
	assert.False(t, a.IsRunning())
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
