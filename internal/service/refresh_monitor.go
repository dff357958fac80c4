package service

import (
	"sort"
	"sync"
	"time"
)

// slowRefreshThreshold marks a refresh cycle as slow
const slowRefreshThreshold = 5 * time.Second

// RefreshMonitor tracks refresh cycle durations and outcomes
type RefreshMonitor struct {
	mu          sync.RWMutex
	durations   []time.Duration
	total       int64
	failures    int64
	slow        int64
	lastError   string
	lastSuccess time.Time
	maxSamples  int
}

// RefreshStats contains refresh cycle statistics
type RefreshStats struct {
	TotalRefreshes int64     `json:"totalRefreshes"`
	Failures       int64     `json:"failures"`
	SlowRefreshes  int64     `json:"slowRefreshes"`
	AvgMs          float64   `json:"avgMs"`
	P95Ms          float64   `json:"p95Ms"`
	LastError      string    `json:"lastError,omitempty"`
	LastSuccess    time.Time `json:"lastSuccess,omitempty"`
}

// NewRefreshMonitor creates a monitor keeping the last 500 samples
func NewRefreshMonitor() *RefreshMonitor {
	return &RefreshMonitor{
		durations:  make([]time.Duration, 0, 500),
		maxSamples: 500,
	}
}

// RecordRefresh records one refresh cycle
func (m *RefreshMonitor) RecordRefresh(duration time.Duration, err error, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if err != nil {
		m.failures++
		m.lastError = err.Error()
		return
	}

	m.lastSuccess = at
	m.durations = append(m.durations, duration)
	if len(m.durations) > m.maxSamples {
		m.durations = m.durations[len(m.durations)-m.maxSamples:]
	}
	if duration > slowRefreshThreshold {
		m.slow++
	}
}

// GetStats returns current statistics. Durations cover successful cycles only.
func (m *RefreshMonitor) GetStats() *RefreshStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &RefreshStats{
		TotalRefreshes: m.total,
		Failures:       m.failures,
		SlowRefreshes:  m.slow,
		LastError:      m.lastError,
		LastSuccess:    m.lastSuccess,
	}

	if len(m.durations) == 0 {
		return stats
	}

	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	stats.AvgMs = float64(sum.Microseconds()) / 1000 / float64(len(sorted))

	p95 := int(float64(len(sorted)) * 0.95)
	if p95 >= len(sorted) {
		p95 = len(sorted) - 1
	}
	stats.P95Ms = float64(sorted[p95].Microseconds()) / 1000

	return stats
}
