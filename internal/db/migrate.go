package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/field-reports/internal/config"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. With sqlMigrations set on postgres
// the embedded SQL files run through golang-migrate; otherwise gorm AutoMigrate
// is used (dev convenience and sqlite).
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool) error {
	if sqlMigrations && cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		if err := runSQLMigrations(ToURLDSN(NormalizeDSN(cfg.URL()))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range Models() {
			if err := conn.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	return checkTables(conn)
}

func runSQLMigrations(dsnURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsnURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, _ := m.Version()
	log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("sql migrations applied")
	return nil
}

func checkTables(conn *gorm.DB) error {
	for _, table := range []string{"interventions", "reclamations"} {
		if !conn.Migrator().HasTable(table) {
			return fmt.Errorf("%w: %s", ErrMissingTable, table)
		}
	}
	return nil
}
