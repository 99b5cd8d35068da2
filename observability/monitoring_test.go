package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_RecordTicks(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager()
	at := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)

	stats := mm.GetLatest()
	req.Zero(stats.Ticks)
	req.Empty(stats.LastTickAt)

	mm.RecordTick(at, 0)
	mm.RecordTick(at.Add(15*time.Second), 2)
	mm.RecordFailedTick(at.Add(30 * time.Second))

	stats = mm.GetLatest()
	req.Equal(uint64(2), stats.Ticks)
	req.Equal(uint64(1), stats.FailedTicks)
	req.Equal(uint64(2), stats.Evictions)
	req.Equal("2026-01-01T00:01:00Z", stats.LastTickAt)
	req.Equal("2026-01-01T00:00:45Z", stats.LastEvictionAt)
	req.Positive(stats.NumGoroutine)
}
