package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a backend dependency is reachable.
type Probe func(ctx context.Context) error

// HealthService serves the standard gRPC health protocol. The overall status
// ("" service) is SERVING while every registered probe succeeds.
type HealthService struct {
	addr     string
	interval time.Duration
	logger   *zap.Logger

	health *health.Server
	grpc   *grpc.Server

	mu       sync.Mutex
	probes   map[string]Probe
	listener net.Listener
	quit     chan struct{}
}

// NewHealthService creates a health service listening on addr that re-runs
// its probes every interval.
//
// Precondition: interval > 0; logger must be non-nil.
func NewHealthService(addr string, interval time.Duration, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthService{
		addr:     addr,
		interval: interval,
		logger:   logger,
		health:   hs,
		grpc:     srv,
		probes:   make(map[string]Probe),
		quit:     make(chan struct{}),
	}
}

// AddProbe registers a named dependency check. Its result is published as
// the status of service name.
//
// Precondition: called before Start.
func (h *HealthService) AddProbe(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
}

// Check runs every probe once and publishes the results.
//
// Postcondition: Returns the first probe failure, or nil if all succeeded.
func (h *HealthService) Check(ctx context.Context) error {
	h.mu.Lock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.Unlock()

	var first error
	for name, p := range probes {
		status := healthpb.HealthCheckResponse_SERVING
		if err := p(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("health probe failed", zap.String("probe", name), zap.Error(err))
			if first == nil {
				first = fmt.Errorf("%s: %w", name, err)
			}
		}
		h.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if first != nil {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", overall)
	return first
}

// Start listens and serves until Stop is called.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	_ = h.Check(context.Background())
	go h.loop()

	h.logger.Info("health service listening", zap.String("addr", lis.Addr().String()))
	if err := h.grpc.Serve(lis); err != nil {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

func (h *HealthService) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.interval)
			_ = h.Check(ctx)
			cancel()
		}
	}
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (h *HealthService) Stop() {
	h.mu.Lock()
	select {
	case <-h.quit:
		h.mu.Unlock()
		return
	default:
		close(h.quit)
	}
	h.mu.Unlock()

	h.health.Shutdown()
	h.grpc.GracefulStop()
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
