package gameserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/auth"
	"github.com/cory-johannsen/fairway/internal/config"
	"github.com/cory-johannsen/fairway/internal/directory"
	redisdir "github.com/cory-johannsen/fairway/internal/directory/redis"
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/game/dispatch"
	"github.com/cory-johannsen/fairway/internal/game/room"
	"github.com/cory-johannsen/fairway/internal/game/session"
	"github.com/cory-johannsen/fairway/internal/server"
	"github.com/cory-johannsen/fairway/internal/storage/postgres"
	"github.com/cory-johannsen/fairway/internal/transport/ws"
)

// healthInterval is how often backend probes are re-run.
const healthInterval = 10 * time.Second

// Backends are the external collaborators of a Server.
type Backends struct {
	Store     session.Store
	Directory directory.Directory
	// Probes are published through the health service and /healthz.
	Probes map[string]server.Probe
	// Close releases backend connections. May be nil.
	Close func()
}

// Connect opens the PostgreSQL pool and, when configured, the Redis directory.
//
// Postcondition: Returns connected Backends or a non-nil error with nothing left open.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (Backends, error) {
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return Backends{}, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	b := Backends{
		Store:     postgres.NewProfileRepository(pool.DB()),
		Directory: directory.Nop{},
		Probes: map[string]server.Probe{
			"postgres": func(ctx context.Context) error { return pool.Health(ctx, 2*time.Second) },
		},
		Close: pool.Close,
	}

	if !cfg.Redis.Enabled() {
		logger.Info("redis directory disabled")
		return b, nil
	}
	dir, err := redisdir.New(redisdir.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		KeyPrefix:    cfg.Redis.KeyPrefix,
		Channel:      cfg.Redis.Channel,
		Timeout:      cfg.Redis.Timeout,
	}, logger)
	if err != nil {
		pool.Close()
		return Backends{}, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("redis directory connected", zap.String("channel", cfg.Redis.Channel))

	b.Directory = dir
	b.Probes["redis"] = dir.Health
	b.Close = func() {
		_ = dir.Close()
		pool.Close()
	}
	return b, nil
}

// Server is the assembled game server.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	backends Backends

	catalog  *catalog.Catalog
	sessions *session.Manager
	rooms    *room.Manager
	table    *dispatch.Table[*session.Conn]
	handler  http.Handler
	acceptor *ws.Acceptor
	health   *server.HealthService
}

// New wires the game core onto backends.
//
// Precondition: cfg is valid; backends.Store and backends.Directory are non-nil.
// Postcondition: Returns a Server ready to be registered with a Lifecycle.
func New(cfg config.Config, backends Backends, logger *zap.Logger) (*Server, error) {
	cat, err := catalog.Load(cfg.Game.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.Int("room_kinds", cat.RoomKindCount()),
		zap.Int("items", cat.ItemCount()),
	)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		backends: backends,
		catalog:  cat,
		sessions: session.NewManager(logger),
	}
	s.rooms = room.NewManager(cat, s.sessions, backends.Directory, cfg.Game.RoomPasswordCost, logger)

	s.table, err = NewTable(NewHandlers(auth.NewVerifier(cfg.Auth), cat, time.Now))
	if err != nil {
		return nil, fmt.Errorf("building dispatch table: %w", err)
	}
	logger.Info("dispatch table built", zap.Stringers("opcodes", s.table.Opcodes()))

	deps := session.Deps{
		Store:       backends.Store,
		Directory:   backends.Directory,
		Rooms:       s.rooms,
		Table:       s.table,
		Clock:       time.Now,
		SaveTimeout: cfg.Game.SaveTimeout,
		Logger:      logger,
	}
	wsHandler := ws.NewHandler(ws.OptionsFrom(cfg.Transport), func(c *ws.Conn) ws.Session {
		return s.sessions.Accept(c, deps)
	}, logger)

	s.health = server.NewHealthService(cfg.Health.Addr(), healthInterval, logger)
	for name, p := range backends.Probes {
		s.health.AddProbe(name, p)
	}

	s.handler = NewRouter(RouterConfig{
		Logger: logger,
		WSPath: cfg.Transport.Path,
		WS:     wsHandler,
		Rooms:  s.rooms,
		Conns:  s.sessions,
		Health: s.health.Check,
	})
	s.acceptor = ws.NewAcceptor(cfg.Transport.Addr(), s.handler, cfg.Server.ShutdownTimeout, logger)
	return s, nil
}

// Handler returns the HTTP handler serving the websocket route, /healthz and /stats.
func (s *Server) Handler() http.Handler { return s.handler }

// Sessions returns the connection manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Rooms returns the room manager.
func (s *Server) Rooms() *room.Manager { return s.rooms }

// Register adds the server's services to lc. Stopping the game service closes
// the listener and then tears down every connection, saving each profile.
func (s *Server) Register(lc *server.Lifecycle) {
	lc.Add("health", s.health)
	lc.Add("game", &server.FuncService{
		StartFn: s.acceptor.ListenAndServe,
		StopFn: func() {
			s.acceptor.Stop()
			s.Shutdown(context.Background())
		},
	})
}

// Shutdown disconnects every connection and releases the backends.
func (s *Server) Shutdown(ctx context.Context) {
	s.sessions.DisconnectAll(ctx)
	if s.backends.Close != nil {
		s.backends.Close()
	}
}
