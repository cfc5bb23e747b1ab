// Package database is the relational sink for finalized analysis records:
// uploaded files, analysis runs and their detections.
package database

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects and locates the backing database.
type Config struct {
	// Type is "sqlite" (default) or "postgres".
	Type string `yaml:"type"`
	// DSN is the postgres connection string, or the sqlite file path.
	DSN string `yaml:"dsn"`
	// LogQueries turns on gorm query logging.
	LogQueries bool `yaml:"log_queries"`
}

// Open connects and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.LogQueries {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "data/odh.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, errors.Wrapf(mkErr, "creating database dir %s", dir)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}

	if err := db.AutoMigrate(&File{}, &Analysis{}, &DetectionRow{}); err != nil {
		return nil, errors.Wrap(err, "migrating schema")
	}
	return db, nil
}
