package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayRecord represents a now-playing change observed while streaming
type PlayRecord struct {
	ID        uuid.UUID `gorm:"primaryKey" json:"id"`
	Station   string    `gorm:"index;not null" json:"station"`
	Artist    string    `gorm:"not null" json:"artist"`
	Title     string    `gorm:"not null" json:"title"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

// PlayerError represents an error that occurred in the playback coordinator
type PlayerError struct {
	ID        uuid.UUID `gorm:"primaryKey" json:"id"`
	Station   string    `gorm:"index;not null" json:"station"`
	ErrorType string    `gorm:"index;not null" json:"error_type"`
	ErrorMsg  string    `gorm:"type:text;not null" json:"error_msg"`
	Context   string    `gorm:"type:text" json:"context"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

// PlayerMetric represents a performance metric from the playback coordinator
type PlayerMetric struct {
	ID         uuid.UUID `gorm:"primaryKey" json:"id"`
	Station    string    `gorm:"index;not null" json:"station"`
	MetricType string    `gorm:"index;not null" json:"metric_type"` // prepare_time, error_count, playback_duration
	Value      float64   `gorm:"not null" json:"value"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
}

// PlayerLog represents a persisted log entry from the daemon
type PlayerLog struct {
	ID        uuid.UUID              `gorm:"primaryKey" json:"id"`
	Station   string                 `gorm:"index" json:"station"`
	Component string                 `gorm:"index;not null;default:'player'" json:"component"`
	Level     string                 `gorm:"index;not null" json:"level"` // INFO, ERROR, WARN, DEBUG
	Message   string                 `gorm:"type:text;not null" json:"message"`
	Error     string                 `gorm:"type:text" json:"error"`
	Fields    map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"fields"`
	Timestamp time.Time              `gorm:"index;not null" json:"timestamp"`
}

// TableName returns the table name for PlayRecord
func (PlayRecord) TableName() string {
	return "play_records"
}

// TableName returns the table name for PlayerError
func (PlayerError) TableName() string {
	return "player_errors"
}

// TableName returns the table name for PlayerMetric
func (PlayerMetric) TableName() string {
	return "player_metrics"
}

// TableName returns the table name for PlayerLog
func (PlayerLog) TableName() string {
	return "player_logs"
}
