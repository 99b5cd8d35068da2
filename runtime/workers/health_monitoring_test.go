package workers

import (
	"chat-relay/clock"
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const presenceService = "chat.relay.Presence"

func servingStatus(t *testing.T, h *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: presenceService})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthMonitoring_Check(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	monitoring := observability.NewMonitoringManager()
	h := health.NewServer()
	worker := NewHealthMonitoringWorker(slog.Default(), c, monitoring, h, presenceService, time.Second, 45*time.Second)
	worker.startedAt = c.Now()

	// Fresh start, no tick yet
	req.Equal(healthpb.HealthCheckResponse_SERVING, worker.Check())
	req.Equal(healthpb.HealthCheckResponse_SERVING, servingStatus(t, h))

	// Reaper never ticked for too long
	c.Advance(time.Minute)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, worker.Check())
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, h))

	// A failed tick still proves the reaper is alive
	monitoring.RecordFailedTick(c.Now())
	req.Equal(healthpb.HealthCheckResponse_SERVING, worker.Check())

	c.Advance(30 * time.Second)
	monitoring.RecordTick(c.Now(), 1)
	c.Advance(45 * time.Second)
	req.Equal(healthpb.HealthCheckResponse_SERVING, worker.Check())
}

func TestHealthMonitoring_Run(t *testing.T) {
	req := require.New(t)
	h := health.NewServer()
	worker := NewHealthMonitoringWorker(slog.Default(), clock.Fake(epoch), observability.NewMonitoringManager(), h, presenceService, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: presenceService})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
