package common

import (
	"fmt"
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// PhaseMetrics records how long each named phase of a run took.
type PhaseMetrics struct {
	mu        sync.RWMutex
	started   time.Time
	current   string
	currentAt time.Time
	durations map[string]time.Duration
	order     []string
}

// NewPhaseMetrics starts the run clock.
func NewPhaseMetrics() *PhaseMetrics {
	now := time.Now()
	return &PhaseMetrics{
		started:   now,
		durations: make(map[string]time.Duration),
	}
}

// Begin closes the running phase, if any, and starts timing name.
func (pm *PhaseMetrics) Begin(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := time.Now()
	pm.closeLocked(now)
	pm.current = name
	pm.currentAt = now
}

// End closes the running phase.
func (pm *PhaseMetrics) End() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.closeLocked(time.Now())
}

func (pm *PhaseMetrics) closeLocked(now time.Time) {
	if pm.current == "" {
		return
	}
	if _, seen := pm.durations[pm.current]; !seen {
		pm.order = append(pm.order, pm.current)
	}
	pm.durations[pm.current] += now.Sub(pm.currentAt)
	pm.current = ""
}

// Duration returns the recorded time of a finished phase.
func (pm *PhaseMetrics) Duration(name string) time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.durations[name]
}

// Elapsed returns the wall time since the run started.
func (pm *PhaseMetrics) Elapsed() time.Duration {
	return time.Since(pm.started)
}

// GetMetrics returns phase durations in milliseconds, keyed by phase name.
func (pm *PhaseMetrics) GetMetrics() map[string]interface{} {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	metrics := make(map[string]interface{}, len(pm.durations)+1)
	for _, name := range pm.order {
		metrics[name+"_ms"] = pm.durations[name].Milliseconds()
	}
	metrics["total_ms"] = time.Since(pm.started).Milliseconds()
	return metrics
}

// MegabytesPerSecond returns throughput in MiB/s, or 0 for an empty interval.
func MegabytesPerSecond(bytes uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / 1024 / 1024 / d.Seconds()
}

// FormatDuration formats a duration for human-readable display
func FormatDuration(duration time.Duration) string {
	switch {
	case duration < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(duration.Nanoseconds())/1000)
	case duration < time.Second:
		return fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1000000)
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", duration.Seconds())
	case duration < time.Hour:
		return fmt.Sprintf("%.2fm", duration.Minutes())
	default:
		return fmt.Sprintf("%.2fh", duration.Hours())
	}
}
