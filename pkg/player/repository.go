package player

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/radioteateonair/radiod/pkg/database/models"
	"github.com/radioteateonair/radiod/pkg/logging"
)

// GormPlayerRepository implements the PlayerRepository interface using GORM
type GormPlayerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository creates a new PlayerRepository implementation
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &GormPlayerRepository{db: db}
}

// SavePlay saves a now-playing record to the database
func (r *GormPlayerRepository) SavePlay(record *models.PlayRecord) error {
	return r.db.Create(record).Error
}

// SaveError saves a player error to the database
func (r *GormPlayerRepository) SaveError(playerError *models.PlayerError) error {
	return r.db.Create(playerError).Error
}

// SaveMetric saves a player metric to the database
func (r *GormPlayerRepository) SaveMetric(metric *models.PlayerMetric) error {
	return r.db.Create(metric).Error
}

// SaveLog saves a log entry to the database
func (r *GormPlayerRepository) SaveLog(entry logging.LogEntry) error {
	record := &models.PlayerLog{
		ID:        uuid.New(),
		Station:   entry.Station,
		Component: entry.Component,
		Level:     entry.Level,
		Message:   entry.Message,
		Error:     entry.Error,
		Fields:    entry.Fields,
		Timestamp: time.Now(),
	}
	return r.db.Create(record).Error
}

// RecentPlays returns the most recent now-playing records for a station
func (r *GormPlayerRepository) RecentPlays(station string, limit int) ([]models.PlayRecord, error) {
	var records []models.PlayRecord
	err := r.db.
		Where("station = ?", station).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// PruneBefore deletes persisted rows older than the cutoff across all tables
// and returns the total number of deleted rows
func (r *GormPlayerRepository) PruneBefore(cutoff time.Time) (int64, error) {
	var total int64

	for _, model := range []interface{}{
		&models.PlayRecord{},
		&models.PlayerError{},
		&models.PlayerMetric{},
		&models.PlayerLog{},
	} {
		result := r.db.Where("timestamp < ?", cutoff).Delete(model)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}

	return total, nil
}

// NoopPlayerRepository is used when no database is configured.
// All writes succeed without effect.
type NoopPlayerRepository struct{}

// NewNoopPlayerRepository creates a repository that discards everything
func NewNoopPlayerRepository() PlayerRepository {
	return &NoopPlayerRepository{}
}

// SavePlay discards the record
func (r *NoopPlayerRepository) SavePlay(record *models.PlayRecord) error { return nil }

// SaveError discards the record
func (r *NoopPlayerRepository) SaveError(playerError *models.PlayerError) error { return nil }

// SaveMetric discards the record
func (r *NoopPlayerRepository) SaveMetric(metric *models.PlayerMetric) error { return nil }

// SaveLog discards the entry
func (r *NoopPlayerRepository) SaveLog(entry logging.LogEntry) error { return nil }

// RecentPlays returns no records
func (r *NoopPlayerRepository) RecentPlays(station string, limit int) ([]models.PlayRecord, error) {
	return nil, nil
}

// PruneBefore deletes nothing
func (r *NoopPlayerRepository) PruneBefore(cutoff time.Time) (int64, error) { return 0, nil }
