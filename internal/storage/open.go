package storage

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"referral-tg-admin/internal/config"
)

// Open creates the store selected by the storage driver
func Open(cfg config.StorageConfig, log *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return NewJSONStore(cfg.Path, log)
	case config.DriverPostgres:
		return openGorm(postgres.Open(cfg.DatabaseURL), log)
	case config.DriverSQLite:
		return openGorm(sqlite.Open(cfg.DatabaseURL), log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openGorm(dialector gorm.Dialector, log *logrus.Logger) (*GormStore, error) {
	gormLogger := logger.New(
		log.WithField("component", "gorm"),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.WithField("driver", dialector.Name()).Info("Database store ready")
	return store, nil
}
