package workers

import (
	"chat-relay/clock"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// HealthMonitoringWorker publishes the presence service as NOT_SERVING when the
// reaper has not ticked for longer than maxSilence, and SERVING otherwise.
// Without eviction the participant list drifts away from reality.
type HealthMonitoringWorker struct {
	log        *slog.Logger
	clock      clock.Clock
	monitoring *observability.MonitoringManager
	health     StatusSetter
	service    string
	interval   time.Duration
	maxSilence time.Duration
	startedAt  time.Time
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	clock clock.Clock,
	monitoring *observability.MonitoringManager,
	health StatusSetter,
	service string,
	interval time.Duration,
	maxSilence time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:        log,
		clock:      clock,
		monitoring: monitoring,
		health:     health,
		service:    service,
		interval:   interval,
		maxSilence: maxSilence,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	w.startedAt = w.clock.Now()
	w.Check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check compares the last reaper tick with the clock and updates the published status.
// Before the first tick, the worker start time is used as the reference.
func (w *HealthMonitoringWorker) Check() healthpb.HealthCheckResponse_ServingStatus {
	reference := w.monitoring.LastTick()
	if reference.IsZero() {
		reference = w.startedAt
	}
	status := healthpb.HealthCheckResponse_SERVING
	if silence := w.clock.Now().Sub(reference); silence > w.maxSilence {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		w.log.Warn("Presence reaper is silent", "silence", silence)
	}
	w.health.SetServingStatus(w.service, status)
	return status
}
