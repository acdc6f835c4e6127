package api

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// DashboardService is the health-checked service name of the dashboard.
const DashboardService = "statarb.Dashboard"

// newGRPCServer builds a gRPC server exposing the standard health service
// and server reflection.
func newGRPCServer(hs *health.Server) *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// markServing sets the overall and dashboard status.
func markServing(hs *health.Server, status healthpb.HealthCheckResponse_ServingStatus) {
	hs.SetServingStatus("", status)
	hs.SetServingStatus(DashboardService, status)
}
