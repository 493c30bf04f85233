// Package grpc exposes the warehouse health over the standard gRPC health protocol.
package grpc

import (
	"github.com/abgdnv/warehouse/internal/platform/server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the warehouse reports its health under.
const ServiceName = "warehouse"

// NewHealthServer returns a health server that reports the warehouse and the server as a whole as serving.
func NewHealthServer() *health.Server {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

// RegisterHealth returns a registration func that mounts h on a gRPC server.
func RegisterHealth(h *health.Server) server.RegistrationFunc {
	return func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, h)
	}
}
