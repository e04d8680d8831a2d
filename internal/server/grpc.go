package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"PortfolioLedger/internal/observability"
)

// ServiceName is the health-checked gRPC service name.
const ServiceName = "portfolioledger"

// GRPCServer serves the standard gRPC health service and reflection. The
// serving status follows the readiness probes.
type GRPCServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	checker    *observability.HealthChecker
	addr       string
	log        zerolog.Logger
}

func NewGRPCServer(addr string, checker *observability.HealthChecker, logger zerolog.Logger) *GRPCServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer: grpcServer,
		health:     healthServer,
		checker:    checker,
		addr:       addr,
		log:        logger.With().Str("component", "grpc").Logger(),
	}
}

// SyncHealth evaluates readiness once and publishes it as the serving status.
func (s *GRPCServer) SyncHealth(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil {
		if !s.checker.IsReady() || len(s.checker.Check(ctx)) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Start serves until ctx is cancelled, refreshing health every interval.
func (s *GRPCServer) Start(ctx context.Context, interval time.Duration) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.SyncHealth(ctx)
			select {
			case <-ctx.Done():
				s.log.Info().Msg("gRPC server shutting down")
				s.health.Shutdown()
				s.grpcServer.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}
