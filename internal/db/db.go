// Package db opens the gorm connection used by the user directory and the kv backend.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db/dsn"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db/models"
	"github.com/GoPowerDNS-Admin/adminauth/internal/logger/adapter/stdlogger"
)

// ErrUnknownDriver is returned for an unsupported db.driver value.
var ErrUnknownDriver = errors.New("unknown database driver")

const slowThreshold = 200 * time.Millisecond

// Open connects to the configured database and migrates the user table.
func Open(cfg config.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "adminauth.db"
		}

		dialector = sqlite.Open(path)
	case "mysql":
		dialector = mysql.Open(dsn.MySQL(cfg))
	case "postgres":
		dialector = postgres.Open(dsn.Postgres(cfg))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(stdlogger.New(), gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  logLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if err = db.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}

	return db, nil
}

func logLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}
