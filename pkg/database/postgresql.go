package database

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/radioteateonair/radiod/pkg/database/models"
)

// NewGormDB creates a new GORM database connection using the provided DSN
func NewGormDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the daemon's tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PlayRecord{},
		&models.PlayerError{},
		&models.PlayerMetric{},
		&models.PlayerLog{},
	)
}
