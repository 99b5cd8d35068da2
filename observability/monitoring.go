package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PresenceStats is what /health reports about the presence reaper and the process.
type PresenceStats struct {
	Ticks          uint64 `json:"ticks"`
	FailedTicks    uint64 `json:"failed_ticks"`
	Evictions      uint64 `json:"evictions"`
	LastTickAt     string `json:"last_tick_at,omitempty"`
	LastEvictionAt string `json:"last_eviction_at,omitempty"`
	AllocMemMb     uint64 `json:"alloc_mem_mb"`
	NumGC          uint32 `json:"num_gc"`
	NumGoroutine   int    `json:"num_goroutine"`
}

// MonitoringManager aggregates reaper counters. Safe for concurrent use.
type MonitoringManager struct {
	mu             sync.RWMutex
	lastTickAt     time.Time
	lastEvictionAt time.Time

	ticks       uint64
	failedTicks uint64
	evictions   uint64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{}
}

// RecordTick counts one completed reaper cycle and the names it evicted.
func (mm *MonitoringManager) RecordTick(at time.Time, evicted int) {
	atomic.AddUint64(&mm.ticks, 1)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastTickAt = at
	if evicted > 0 {
		atomic.AddUint64(&mm.evictions, uint64(evicted))
		mm.lastEvictionAt = at
	}
}

func (mm *MonitoringManager) RecordFailedTick(at time.Time) {
	atomic.AddUint64(&mm.failedTicks, 1)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastTickAt = at
}

// LastTick returns when the reaper last completed or abandoned a cycle, zero if never.
func (mm *MonitoringManager) LastTick() time.Time {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.lastTickAt
}

func (mm *MonitoringManager) GetLatest() PresenceStats {
	mm.mu.RLock()
	stats := PresenceStats{
		Ticks:          atomic.LoadUint64(&mm.ticks),
		FailedTicks:    atomic.LoadUint64(&mm.failedTicks),
		Evictions:      atomic.LoadUint64(&mm.evictions),
		LastTickAt:     formatTime(mm.lastTickAt),
		LastEvictionAt: formatTime(mm.lastEvictionAt),
	}
	mm.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.NumGoroutine = runtime.NumGoroutine()
	return stats
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
