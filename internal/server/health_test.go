package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealth(t *testing.T, h *HealthService) healthpb.HealthClient {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- h.Start() }()
	t.Cleanup(func() {
		h.Stop()
		<-errc
	})
	require.Eventually(t, func() bool { return h.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient(h.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServiceServing(t *testing.T) {
	h := NewHealthService("127.0.0.1:0", time.Hour, zaptest.NewLogger(t))
	h.AddProbe("postgres", func(context.Context) error { return nil })
	client := startHealth(t, h)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, "postgres"))
}

func TestHealthServiceProbeFailure(t *testing.T) {
	var down atomic.Bool
	h := NewHealthService("127.0.0.1:0", time.Hour, zaptest.NewLogger(t))
	h.AddProbe("redis", func(context.Context) error {
		if down.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	client := startHealth(t, h)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))

	down.Store(true)
	err := h.Check(context.Background())
	assert.ErrorContains(t, err, "redis")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, "redis"))
}

func TestHealthServiceStopIsIdempotent(t *testing.T) {
	h := NewHealthService("127.0.0.1:0", time.Hour, zaptest.NewLogger(t))
	startHealth(t, h)
	h.Stop()
	h.Stop()
}
