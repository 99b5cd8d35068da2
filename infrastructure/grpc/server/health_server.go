package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PresenceService is the name probes ask the health service about.
const PresenceService = "chat.relay.v1.Presence"

// HealthServer serves the standard gRPC health protocol so orchestrators can
// probe the relay. The overall status ("") follows the process lifecycle;
// PresenceService is driven by the reaper health monitoring.
type HealthServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	h := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	return &HealthServer{log: log, server: s, health: h}
}

// Health exposes the underlying status holder, to be passed to the health monitoring worker.
func (h *HealthServer) Health() *health.Server {
	return h.health
}

// Serve blocks until the server stops. It reports SERVING for the whole process
// as soon as it starts accepting.
func (h *HealthServer) Serve(listener net.Listener) error {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.log.Info("Starting gRPC health server", "address", listener.Addr().String())
	return h.server.Serve(listener)
}

// GracefulStop flips every status to NOT_SERVING, then drains in-flight calls.
func (h *HealthServer) GracefulStop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
