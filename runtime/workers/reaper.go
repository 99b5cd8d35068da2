package workers

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// ReaperWorker evicts participants that stopped sending heartbeats and
// announces each departure in the message log.
// It keeps no state between ticks: a tick that fails is simply redone by the
// next one, which scans the registry again.
type ReaperWorker struct {
	log                 *slog.Logger
	clock               clock.Clock
	participants        repositories.IParticipantRepository
	messages            repositories.IMessageRepository
	monitoring          *observability.MonitoringManager
	inactivityThreshold time.Duration
	tickInterval        time.Duration
}

func NewReaperWorker(
	log *slog.Logger,
	clock clock.Clock,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	monitoring *observability.MonitoringManager,
	inactivityThreshold time.Duration,
	tickInterval time.Duration,
) *ReaperWorker {
	return &ReaperWorker{
		log:                 log,
		clock:               clock,
		participants:        participants,
		messages:            messages,
		monitoring:          monitoring,
		inactivityThreshold: inactivityThreshold,
		tickInterval:        tickInterval,
	}
}

// Run ticks every tickInterval until ctx is done.
// Tick failures are logged and never stop the loop.
func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence reaper",
		"inactivity_threshold", w.inactivityThreshold,
		"tick_interval", w.tickInterval)
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence reaper")
			return nil
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				w.log.Error("Presence reaper tick abandoned", "error", err)
			}
		}
	}
}

// Tick runs one scan, evict and announce cycle and returns the evicted names.
// Participants last seen strictly before now - inactivityThreshold are stale.
// A failed tick still returns the names it managed to evict.
func (w *ReaperWorker) Tick(ctx context.Context) ([]string, error) {
	now := w.clock.Now()
	evicted, err := w.tick(ctx, now)
	if err != nil {
		w.record(now, 0, err)
		return evicted, err
	}
	w.record(now, len(evicted), nil)
	return evicted, nil
}

func (w *ReaperWorker) tick(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.Add(-w.inactivityThreshold)
	stale, err := w.participants.Stale(cutoff)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	evicted, err := w.participants.Evict(stale)
	if err != nil {
		// Earlier batches may have committed; they still get their notice.
		if len(evicted) > 0 {
			if announceErr := w.announce(evicted, now); announceErr != nil {
				return evicted, fmt.Errorf("evict: %w", stderrors.Join(err, announceErr))
			}
		}
		return evicted, fmt.Errorf("evict: %w", err)
	}
	if len(evicted) < len(stale) {
		w.log.Debug("Some stale participants were refreshed before eviction",
			"scanned", len(stale), "evicted", len(evicted))
	}
	if len(evicted) == 0 {
		return nil, nil
	}

	if err = w.announce(evicted, now); err != nil {
		// The participants are gone; only their departure notice is lost.
		return evicted, err
	}
	return evicted, nil
}

func (w *ReaperWorker) announce(evicted []string, now time.Time) error {
	notices := lo.Map(evicted, func(name string, _ int) domain.Message {
		return domain.NewStatusMessage(name, domain.InactivityText, now)
	})
	if _, err := w.messages.AppendMany(notices); err != nil {
		return fmt.Errorf("announce %v: %w", evicted, err)
	}
	w.log.Info("Evicted inactive participants", "names", evicted)
	return nil
}

func (w *ReaperWorker) record(at time.Time, evicted int, err error) {
	if w.monitoring == nil {
		return
	}
	if err != nil {
		w.monitoring.RecordFailedTick(at)
		return
	}
	w.monitoring.RecordTick(at, evicted)
}
