package player

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/radioteateonair/radiod/pkg/logging"
)

// NewCoordinatorWithDependencies creates a complete playback coordinator
// with all dependencies wired through interfaces. A nil db disables
// persistence.
func NewCoordinatorWithDependencies(
	db *gorm.DB,
	config ConfigProvider,
	opener StreamOpener,
	metadata MetadataSource,
	notifier Notifier,
) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	station := config.GetStreamConfig().Station

	repo := createRepository(db)
	logger := logging.GetGlobalLoggerFactory().CreatePlayerLogger(station)

	if notifier == nil {
		notifier = NewMultiNotifier(
			NewLogNotifier(logger),
			NewFileNotifier(DefaultNowPlayingPath(), logger),
		)
	}

	errorHandler := NewBasicErrorHandler(config.GetRetryConfig(), logger, repo, station)
	metrics := NewBasicMetrics(repo, station)
	events := NewBroadcaster()

	coordinator := NewCoordinator(
		opener,
		metadata,
		notifier,
		events,
		metrics,
		errorHandler,
		repo,
		logger,
		config,
	)

	logger.Info("Playback coordinator created", CreateContextFields(station, config.GetStreamConfig().URL))

	return coordinator, nil
}

// createRepository picks the persistence backend
func createRepository(db *gorm.DB) PlayerRepository {
	if db == nil {
		return NewNoopPlayerRepository()
	}
	return NewPlayerRepository(db)
}
