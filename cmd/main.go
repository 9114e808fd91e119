package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/radioteateonair/radiod/internal/config"
	"github.com/radioteateonair/radiod/internal/control"
	"github.com/radioteateonair/radiod/internal/janitor"
	"github.com/radioteateonair/radiod/internal/version"
	"github.com/radioteateonair/radiod/pkg/database"
	"github.com/radioteateonair/radiod/pkg/logging"
	"github.com/radioteateonair/radiod/pkg/metadata"
	"github.com/radioteateonair/radiod/pkg/player"
	"github.com/radioteateonair/radiod/pkg/stream"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("radiod failed: %v", err)
	}
}

func run() error {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
		// Continue execution as .env might not exist in production
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load process config: %w", err)
	}

	playerCfg, err := player.NewConfigManager()
	if err != nil {
		return fmt.Errorf("failed to load player config: %w", err)
	}

	db, err := openDatabase(appCfg)
	if err != nil {
		return err
	}
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get underlying database: %w", err)
		}
		defer sqlDB.Close()
	}

	initializeLogging(playerCfg, db)

	factory := logging.GetGlobalLoggerFactory()
	rootLogger := factory.CreateLogger("radiod")
	rootLogger.Info("Starting", map[string]interface{}{
		"version": version.Get().String(),
		"station": playerCfg.GetStreamConfig().Station,
	})

	coordinator, err := buildCoordinator(appCfg, playerCfg, db)
	if err != nil {
		return fmt.Errorf("failed to build coordinator: %w", err)
	}

	server := startControlServer(appCfg, coordinator, factory, rootLogger)

	j := startJanitor(playerCfg, db, factory)
	if j != nil {
		defer j.Stop()
	}

	// Prepare the stream ahead of the first play request
	coordinator.Dispatch(player.ActionPrefetch)

	waitForShutdown(coordinator, rootLogger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rootLogger.Warn("Control server shutdown incomplete", map[string]interface{}{
			"error": err.Error(),
		})
	}

	rootLogger.Info("Stopped", nil)
	return nil
}

// openDatabase connects to PostgreSQL when DATABASE_URL is set.
// Persistence is optional; without it the daemon runs with no-op storage.
func openDatabase(appCfg *config.AppConfig) (*gorm.DB, error) {
	if appCfg.DatabaseURL == "" {
		return nil, nil
	}

	db, err := database.NewGormDB(appCfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// initializeLogging installs the global logger factory, database-backed
// when persistence is available and enabled
func initializeLogging(playerCfg player.ConfigProvider, db *gorm.DB) {
	loggerCfg := playerCfg.GetLoggerConfig()

	if db != nil && loggerCfg.SaveToDB {
		repo := player.NewPlayerRepository(db)
		logging.SetGlobalLoggerFactory(logging.NewDatabaseLoggerFactory(repo, loggerCfg.Level))
		return
	}

	logging.SetGlobalLoggerFactory(logging.NewLoggerFactoryAtLevel(loggerCfg.Level))
}

// buildCoordinator wires the stream opener, metadata source, and
// notification surfaces into the playback coordinator
func buildCoordinator(appCfg *config.AppConfig, playerCfg player.ConfigProvider, db *gorm.DB) (*player.Coordinator, error) {
	streamCfg := playerCfg.GetStreamConfig()
	sinkCfg := playerCfg.GetSinkConfig()
	metaCfg := playerCfg.GetMetadataConfig()

	factory := logging.GetGlobalLoggerFactory()
	streamLogger := factory.CreatePlayerLogger(streamCfg.Station)

	sinks := stream.NewExecSinkFactory(stream.ExecSinkConfig{
		BinaryPath: sinkCfg.BinaryPath,
		SampleRate: streamCfg.SampleRate,
		Channels:   streamCfg.Channels,
		CustomArgs: sinkCfg.CustomArgs,
	})

	opener := stream.NewFFmpegOpener(stream.Config{
		FFmpegBinary:  streamCfg.FFmpegBinary,
		SampleRate:    streamCfg.SampleRate,
		Channels:      streamCfg.Channels,
		PrefetchBytes: streamCfg.PrefetchBytes,
		CustomArgs:    streamCfg.CustomArgs,
	}, sinks, streamLogger)

	source := metadata.NewIcecastSource(metadata.IcecastConfig{
		URL:            metaCfg.URL,
		ConnectTimeout: time.Duration(metaCfg.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:    time.Duration(metaCfg.ReadTimeoutSeconds) * time.Second,
	})

	var notifier player.Notifier
	if appCfg.NowPlayingPath != "" {
		notifier = player.NewMultiNotifier(
			player.NewLogNotifier(streamLogger),
			player.NewFileNotifier(appCfg.NowPlayingPath, streamLogger),
		)
	}

	return player.NewCoordinatorWithDependencies(db, playerCfg, opener, source, notifier)
}

// startControlServer begins serving the HTTP command surface
func startControlServer(appCfg *config.AppConfig, coordinator *player.Coordinator, factory logging.LoggerFactory, rootLogger logging.Logger) *http.Server {
	handler := control.NewServer(coordinator, factory.CreateControlLogger(appCfg.ListenAddr))

	server := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		rootLogger.Info("Control server listening", map[string]interface{}{
			"addr": appCfg.ListenAddr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("Control server failed", err, nil)
		}
	}()

	return server
}

// startJanitor schedules retention pruning when persistence is enabled
func startJanitor(playerCfg player.ConfigProvider, db *gorm.DB, factory logging.LoggerFactory) *janitor.Janitor {
	if db == nil {
		return nil
	}

	historyCfg := playerCfg.GetHistoryConfig()
	repo := player.NewPlayerRepository(db)
	j := janitor.New(repo, factory.CreateLogger("janitor"), historyCfg.RetentionDays, historyCfg.PruneSchedule)

	if err := j.Start(); err != nil {
		factory.CreateLogger("janitor").Error("Failed to schedule retention pruning", err, nil)
		return nil
	}
	return j
}

// waitForShutdown blocks until a signal arrives or the coordinator
// closes itself, then drives the close transition
func waitForShutdown(coordinator *player.Coordinator, rootLogger logging.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signals:
		rootLogger.Info("Signal received, closing", map[string]interface{}{
			"signal": sig.String(),
		})
		coordinator.Close()
		<-coordinator.Done()
	case <-coordinator.Done():
		// Closed through the control surface
	}
}
