package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/config"
)

// Session consumes the frames of one connection.
type Session interface {
	// HandleInbound processes one frame. Frames arrive one at a time.
	HandleInbound(ctx context.Context, frame []byte)
	// Disconnect tears the session down. It is called once the socket is gone.
	Disconnect(ctx context.Context)
}

// AcceptFunc creates the session bound to a freshly upgraded connection.
type AcceptFunc func(c *Conn) Session

// Handler upgrades HTTP requests to websocket connections and pumps frames
// between the socket and a Session.
type Handler struct {
	upgrader websocket.Upgrader
	opts     Options
	accept   AcceptFunc
	logger   *zap.Logger
}

// OptionsFrom maps transport configuration to connection options.
func OptionsFrom(cfg config.TransportConfig) Options {
	return Options{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
		SendBuffer:   cfg.SendBuffer,
	}
}

// NewHandler creates a Handler.
//
// Precondition: accept and logger must be non-nil.
func NewHandler(opts Options, accept AcceptFunc, logger *zap.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts:   opts,
		accept: accept,
		logger: logger,
	}
}

// ServeHTTP runs the connection until the socket closes. The request
// goroutine is the connection's only reader.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := NewConn(raw, h.opts, h.logger.With(zap.String("remote_addr", r.RemoteAddr)))
	go conn.writeLoop()

	sess := h.accept(conn)
	ctx := context.WithoutCancel(r.Context())

	err = conn.readLoop(func(frame []byte) {
		sess.HandleInbound(ctx, frame)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !conn.IsClosed() {
		h.logger.Debug("read ended",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
	}

	sess.Disconnect(ctx)
	conn.Disconnect()
	<-conn.Done()

	h.logger.Info("client disconnected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Duration("duration", time.Since(start)),
	)
}
