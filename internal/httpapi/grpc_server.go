package httpapi

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the standard gRPC health service for platform
// probes that speak gRPC instead of HTTP.
type GRPCHealthServer struct {
	srv    *grpc.Server
	health *health.Server
}

// NewGRPCHealthServer builds a server reporting SERVING for the whole
// process.
func NewGRPCHealthServer() *GRPCHealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &GRPCHealthServer{srv: srv, health: h}
}

// Serve blocks serving on lis until Stop is called.
func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// SetNotServing flips the reported status, used during drain.
func (s *GRPCHealthServer) SetNotServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// Stop gracefully stops the server.
func (s *GRPCHealthServer) Stop() {
	s.srv.GracefulStop()
}
