// Package db opens the record store connection and applies its schema.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/field-reports/internal/config"
	"github.com/diewo77/field-reports/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Connect opens the configured database, retrying while postgres starts up.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})}

	var conn *gorm.DB
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", i+1).Warn("db connection failed, retrying")
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", connectAttempts, err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return conn, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		dsn := NormalizeDSN(cfg.DSN())
		log.WithFields(log.Fields{"driver": "postgres", "dsn": MaskDSN(dsn)}).Info("connecting to database")
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		log.WithFields(log.Fields{"driver": "sqlite", "path": cfg.SQLitePath}).Info("connecting to database")
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// Models lists every table owned by this service, in creation order.
func Models() []any {
	return []any{&models.Intervention{}, &models.Reclamation{}}
}

// Ping reports whether the underlying connection is usable.
func Ping(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ErrMissingTable is returned when the schema is incomplete after migrating.
var ErrMissingTable = errors.New("missing table after migration")
