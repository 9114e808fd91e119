package logging

import (
	"fmt"
)

// DatabaseLogger wraps a base logger with database persistence.
// Persistence failures are logged through the base logger and never
// interrupt the caller.
type DatabaseLogger struct {
	base       Logger
	component  string
	repository LogRepository
	context    map[string]interface{}
}

// NewDatabaseLogger creates a new database-backed logger
func NewDatabaseLogger(base Logger, component string, repository LogRepository) Logger {
	return &DatabaseLogger{
		base:       base,
		component:  component,
		repository: repository,
		context:    make(map[string]interface{}),
	}
}

// Info logs an info message and persists it
func (d *DatabaseLogger) Info(msg string, fields map[string]interface{}) {
	d.base.Info(msg, fields)
	d.persist("INFO", msg, nil, fields)
}

// Error logs an error message and persists it
func (d *DatabaseLogger) Error(msg string, err error, fields map[string]interface{}) {
	d.base.Error(msg, err, fields)
	d.persist("ERROR", msg, err, fields)
}

// Warn logs a warning message and persists it
func (d *DatabaseLogger) Warn(msg string, fields map[string]interface{}) {
	d.base.Warn(msg, fields)
	d.persist("WARN", msg, nil, fields)
}

// Debug logs a debug message without persistence.
// Debug entries are too chatty for the log table.
func (d *DatabaseLogger) Debug(msg string, fields map[string]interface{}) {
	d.base.Debug(msg, fields)
}

// WithPipeline creates a new logger with pipeline context
func (d *DatabaseLogger) WithPipeline(pipeline string) Logger {
	return &DatabaseLogger{
		base:       d.base.WithPipeline(pipeline),
		component:  d.component,
		repository: d.repository,
		context:    d.copyContext(),
	}
}

// WithContext creates a new logger with additional context
func (d *DatabaseLogger) WithContext(ctx map[string]interface{}) Logger {
	newContext := d.copyContext()
	for k, v := range ctx {
		newContext[k] = v
	}

	return &DatabaseLogger{
		base:       d.base.WithContext(ctx),
		component:  d.component,
		repository: d.repository,
		context:    newContext,
	}
}

func (d *DatabaseLogger) copyContext() map[string]interface{} {
	newContext := make(map[string]interface{})
	for k, v := range d.context {
		newContext[k] = v
	}
	return newContext
}

func (d *DatabaseLogger) persist(level, msg string, err error, fields map[string]interface{}) {
	if d.repository == nil {
		return
	}

	merged := d.copyContext()
	for k, v := range fields {
		merged[k] = v
	}

	entry := LogEntry{
		Component: d.component,
		Level:     level,
		Message:   msg,
		Fields:    merged,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if station, ok := merged["station"].(string); ok {
		entry.Station = station
	}

	if saveErr := d.repository.SaveLog(entry); saveErr != nil {
		d.base.Warn("Failed to persist log entry", map[string]interface{}{
			"persist_error": fmt.Sprintf("%v", saveErr),
		})
	}
}
