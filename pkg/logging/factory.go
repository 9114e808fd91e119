package logging

import (
	"sync"
)

// DefaultLoggerFactory implements LoggerFactory using zap loggers
type DefaultLoggerFactory struct {
	loggers map[string]Logger
	level   string
	mu      sync.RWMutex
}

// NewLoggerFactory creates a new logger factory
func NewLoggerFactory() LoggerFactory {
	return NewLoggerFactoryAtLevel("info")
}

// NewLoggerFactoryAtLevel creates a new logger factory emitting at the given level
func NewLoggerFactoryAtLevel(level string) LoggerFactory {
	return &DefaultLoggerFactory{
		loggers: make(map[string]Logger),
		level:   level,
	}
}

// CreateLogger creates a basic logger for the specified component
func (f *DefaultLoggerFactory) CreateLogger(component string) Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	logger := NewZapLoggerAtLevel(component, f.level)
	f.loggers[component] = logger
	return logger
}

// CreatePlayerLogger creates a logger for playback coordinator operations
func (f *DefaultLoggerFactory) CreatePlayerLogger(station string) Logger {
	baseLogger := f.CreateLogger("player")
	return baseLogger.WithContext(map[string]interface{}{
		"station": station,
	})
}

// CreateControlLogger creates a logger for control surface operations
func (f *DefaultLoggerFactory) CreateControlLogger(endpoint string) Logger {
	baseLogger := f.CreateLogger("control")
	return baseLogger.WithContext(map[string]interface{}{
		"endpoint": endpoint,
	})
}

// DatabaseLoggerFactory extends the default factory with database persistence
type DatabaseLoggerFactory struct {
	*DefaultLoggerFactory
	repository LogRepository
}

// NewDatabaseLoggerFactory creates a logger factory with database persistence
func NewDatabaseLoggerFactory(repository LogRepository, level string) LoggerFactory {
	return &DatabaseLoggerFactory{
		DefaultLoggerFactory: &DefaultLoggerFactory{
			loggers: make(map[string]Logger),
			level:   level,
		},
		repository: repository,
	}
}

// CreateLogger creates a database-backed logger for the specified component
func (f *DatabaseLoggerFactory) CreateLogger(component string) Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	baseLogger := NewZapLoggerAtLevel(component, f.level)
	dbLogger := NewDatabaseLogger(baseLogger, component, f.repository)
	f.loggers[component] = dbLogger
	return dbLogger
}

var (
	globalFactory   LoggerFactory
	globalFactoryMu sync.RWMutex
)

// SetGlobalLoggerFactory installs the process-wide logger factory
func SetGlobalLoggerFactory(factory LoggerFactory) {
	globalFactoryMu.Lock()
	defer globalFactoryMu.Unlock()
	globalFactory = factory
}

// GetGlobalLoggerFactory returns the process-wide logger factory,
// creating a default one if none was installed
func GetGlobalLoggerFactory() LoggerFactory {
	globalFactoryMu.RLock()
	if globalFactory != nil {
		defer globalFactoryMu.RUnlock()
		return globalFactory
	}
	globalFactoryMu.RUnlock()

	globalFactoryMu.Lock()
	defer globalFactoryMu.Unlock()
	if globalFactory == nil {
		globalFactory = NewLoggerFactory()
	}
	return globalFactory
}
