package player

import (
	"context"
	"time"

	"github.com/radioteateonair/radiod/pkg/database/models"
	"github.com/radioteateonair/radiod/pkg/logging"
)

// Stream is a live, prepared connection to the remote audio endpoint.
// At most one Stream exists at a time; the coordinator owns it exclusively.
type Stream interface {
	// Start begins audible playback of the prepared stream.
	Start() error
	// Pause stops audible output but keeps the stream prepared for fast resume.
	Pause() error
	// Probe checks that the underlying stream is still alive.
	Probe() error
	// Close releases the stream permanently.
	Close() error
	// Done is signalled when the stream ends on its own, which is
	// abnormal for a live radio feed.
	Done() <-chan error
}

// StreamOpener prepares new streams. Open blocks until the stream is
// connected and buffered, so callers run it off the action path.
type StreamOpener interface {
	Open(ctx context.Context, url string) (Stream, error)
}

// NowPlaying is the parsed "artist - title" pair from the station metadata.
type NowPlaying struct {
	Artist string
	Title  string
}

// MetadataSource fetches the current now-playing metadata from the station.
type MetadataSource interface {
	Fetch(ctx context.Context) (NowPlaying, error)
}

// Notifier renders playback state to a user-visible surface.
// Publish must be safe to call redundantly; it never mutates player state.
type Notifier interface {
	Publish(snapshot NotificationSnapshot)
	Clear()
}

// ErrorHandler manages error handling and retry logic
type ErrorHandler interface {
	HandleError(err error, context string) (shouldRetry bool, delay time.Duration)
	LogError(err error, context string)
	IsRetryableError(err error) bool
	ShouldRetryAfterAttempts(attempts int, err error) bool
}

// MetricsCollector handles performance metrics collection
type MetricsCollector interface {
	RecordPrepareTime(duration time.Duration)
	RecordError(errorType string)
	RecordPlaybackDuration(duration time.Duration)
	GetStats() MetricsStats
}

// PlayerRepository handles database operations for playback-related data
type PlayerRepository interface {
	SavePlay(record *models.PlayRecord) error
	SaveError(playerError *models.PlayerError) error
	SaveMetric(metric *models.PlayerMetric) error
	SaveLog(entry logging.LogEntry) error
	RecentPlays(station string, limit int) ([]models.PlayRecord, error)
	PruneBefore(cutoff time.Time) (int64, error)
}

// ConfigProvider manages configuration loading from multiple sources
type ConfigProvider interface {
	GetStreamConfig() *StreamConfig
	GetSinkConfig() *SinkConfig
	GetDispatchConfig() *DispatchConfig
	GetMetadataConfig() *MetadataConfig
	GetKeepaliveConfig() *KeepaliveConfig
	GetRetryConfig() *RetryConfig
	GetLoggerConfig() *LoggerConfig
	GetHistoryConfig() *HistoryConfig
	Validate() error
}
