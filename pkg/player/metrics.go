package player

import (
	"sync"
	"time"
)

// BasicMetrics implements the MetricsCollector interface.
// In-memory counters back GetStats; persistence is delegated to the
// repository and never fails the caller.
type BasicMetrics struct {
	repository PlayerRepository
	station    string

	prepareTimes  []time.Duration
	errorCounts   map[string]int
	playbackTimes []time.Duration
	mu            sync.RWMutex
}

// NewBasicMetrics creates a new BasicMetrics instance
func NewBasicMetrics(repository PlayerRepository, station string) MetricsCollector {
	return &BasicMetrics{
		repository:    repository,
		station:       station,
		prepareTimes:  make([]time.Duration, 0),
		errorCounts:   make(map[string]int),
		playbackTimes: make([]time.Duration, 0),
	}
}

// RecordPrepareTime records how long stream preparation took
func (m *BasicMetrics) RecordPrepareTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prepareTimes = append(m.prepareTimes, duration)

	if m.repository != nil {
		metric := CreatePlayerMetric(m.station, "prepare_time", duration.Seconds())
		// Storage errors must not break the playback path
		_ = m.repository.SaveMetric(metric)
	}
}

// RecordError counts errors by classification
func (m *BasicMetrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorCounts[errorType]++

	if m.repository != nil {
		metric := CreatePlayerMetric(m.station, "error_count", 1.0)
		_ = m.repository.SaveMetric(metric)
	}
}

// RecordPlaybackDuration records the duration of a completed playback session
func (m *BasicMetrics) RecordPlaybackDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playbackTimes = append(m.playbackTimes, duration)

	if m.repository != nil {
		metric := CreatePlayerMetric(m.station, "playback_duration", duration.Seconds())
		_ = m.repository.SaveMetric(metric)
	}
}

// GetStats returns aggregated metrics from the in-memory counters
func (m *BasicMetrics) GetStats() MetricsStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MetricsStats{
		SuccessfulPlays: len(m.playbackTimes),
	}

	for _, d := range m.playbackTimes {
		stats.TotalPlaybackTime += d
	}

	if len(m.prepareTimes) > 0 {
		var total time.Duration
		for _, d := range m.prepareTimes {
			total += d
		}
		stats.AveragePrepareTime = total / time.Duration(len(m.prepareTimes))
	}

	for _, count := range m.errorCounts {
		stats.ErrorCount += count
	}

	return stats
}
