// Package grpcserver runs the gRPC health endpoint used by the platform's
// service mesh to probe the ingest service.
package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the name reported by the health service.
const ServiceName = "ingest-service"

// Server wraps a grpc.Server with the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New constructs a Server reporting SERVING for ServiceName and the
// overall ("") service.
func New() *Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Server{grpc: gs, health: hs}
}

// Serve blocks serving on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("grpcserver: listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		slog.Warn("grpcserver: call failed",
			"method", info.FullMethod, "code", status.Code(err).String(),
			"duration", time.Since(start), "err", err)
	}
	return resp, err
}
