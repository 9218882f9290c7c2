// Package server provides the gRPC health endpoint of a running runtime host.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/alkatest/internal/core/config"
)

// ServiceName is the health service name reported for the runtime host.
const ServiceName = "alkatest.runtime"

const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	config config.RuntimeConfig
	logger *slog.Logger
}

// NewGRPCServer creates a gRPC server exposing the standard health service.
// Both the overall status and ServiceName start NOT_SERVING until
// SetServing is called.
func NewGRPCServer(cfg config.RuntimeConfig, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}

	s := &GRPCServer{config: cfg, logger: logger, health: health.NewServer()}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	grpc_health_v1.RegisterHealthServer(s.server, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips the reported health status.
func (s *GRPCServer) SetServing(ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("grpc request", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	return resp, err
}

// Start binds the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Shutdown.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.logger.Info("health server listening", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server, forcing a stop when ctx ends or the
// timeout passes.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
