package player_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radioteateonair/radiod/pkg/player"
)

func TestMetrics_EmptyStats(t *testing.T) {
	metrics := player.NewBasicMetrics(nil, "Test Station")

	stats := metrics.GetStats()
	assert.Zero(t, stats.SuccessfulPlays)
	assert.Zero(t, stats.ErrorCount)
	assert.Zero(t, stats.AveragePrepareTime)
	assert.Zero(t, stats.TotalPlaybackTime)
}

func TestMetrics_Aggregation(t *testing.T) {
	metrics := player.NewBasicMetrics(nil, "Test Station")

	metrics.RecordPrepareTime(100 * time.Millisecond)
	metrics.RecordPrepareTime(300 * time.Millisecond)
	metrics.RecordPlaybackDuration(2 * time.Minute)
	metrics.RecordPlaybackDuration(3 * time.Minute)
	metrics.RecordError("network")
	metrics.RecordError("network")
	metrics.RecordError("timeout")

	stats := metrics.GetStats()
	assert.Equal(t, 2, stats.SuccessfulPlays)
	assert.Equal(t, 5*time.Minute, stats.TotalPlaybackTime)
	assert.Equal(t, 200*time.Millisecond, stats.AveragePrepareTime)
	assert.Equal(t, 3, stats.ErrorCount)
}

func TestMetrics_PersistsThroughRepository(t *testing.T) {
	repo := &recordingRepo{}
	metrics := player.NewBasicMetrics(repo, "Test Station")

	metrics.RecordPrepareTime(50 * time.Millisecond)
	metrics.RecordError("stream")
	metrics.RecordPlaybackDuration(time.Minute)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.metrics, 3)
	assert.Equal(t, "prepare_time", repo.metrics[0].MetricType)
	assert.Equal(t, "error_count", repo.metrics[1].MetricType)
	assert.Equal(t, "playback_duration", repo.metrics[2].MetricType)
	for _, m := range repo.metrics {
		assert.Equal(t, "Test Station", m.Station)
	}
}
