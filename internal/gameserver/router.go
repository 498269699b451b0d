package gameserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/directory"
)

// RoomLister reports the live rooms.
type RoomLister interface {
	List() []directory.RoomInfo
}

// ConnCounter reports the number of live connections.
type ConnCounter interface {
	Count() int
}

// RouterConfig holds the collaborators of the HTTP router.
type RouterConfig struct {
	Logger *zap.Logger
	// WSPath is the websocket upgrade route.
	WSPath string
	// WS serves game connections.
	WS    http.Handler
	Rooms RoomLister
	Conns ConnCounter
	// Health reports backend reachability. Nil means always healthy.
	Health func(ctx context.Context) error
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Connections int                  `json:"connections"`
	Rooms       []directory.RoomInfo `json:"rooms"`
}

// NewRouter creates the HTTP router: the websocket route, /healthz and /stats.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Handle(cfg.WSPath, cfg.WS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(cfg)).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(cfg)).Methods(http.MethodGet)

	return r
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				cfg.Logger.Warn("health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func statsHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatsResponse{
			Connections: cfg.Conns.Count(),
			Rooms:       cfg.Rooms.List(),
		}
		if resp.Rooms == nil {
			resp.Rooms = []directory.RoomInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			cfg.Logger.Warn("encoding stats", zap.Error(err))
		}
	}
}
