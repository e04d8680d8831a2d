package server

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"PortfolioLedger/internal/observability"
)

func servingStatus(t *testing.T, s *GRPCServer) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.Status
}

func TestGRPCHealth_FollowsReadiness(t *testing.T) {
	checker := observability.NewHealthChecker()
	s := NewGRPCServer("127.0.0.1:0", checker, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, s), "not serving before startup completes")

	checker.SetReady(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.SyncHealth(ctx))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, s))

	checker.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.SyncHealth(ctx))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, s))
}

func TestGRPCHealth_NilCheckerIsServing(t *testing.T) {
	s := NewGRPCServer("127.0.0.1:0", nil, zerolog.Nop())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.SyncHealth(context.Background()))
}
