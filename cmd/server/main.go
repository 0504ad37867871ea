package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/field-reports/internal/config"
	"github.com/diewo77/field-reports/internal/db"
	"github.com/diewo77/field-reports/internal/mailer"
	"github.com/diewo77/field-reports/internal/policy"
	"github.com/diewo77/field-reports/internal/report"
	"github.com/diewo77/field-reports/internal/store"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.App)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	dbConn, err := db.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.Database, true); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")
		return
	}

	// SQL migrations when MIGRATIONS is set, AutoMigrate otherwise
	if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	routerCfg := policy.NewRouterConfig(cfg, policy.Deps{
		Store:     store.NewGormStore(dbConn),
		Transport: mailer.NewTransport(cfg.Mail),
		Photos:    newPhotoFetcher(cfg.Limits),
	})
	appHandler := NewApp(dbConn, routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":           cfg.Server.Port,
			"dev":            cfg.App.Dev,
			"mail_transport": routerCfg.Dispatcher.TransportName(),
			"daily_limit":    cfg.Limits.DailySubmissions,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped gracefully")
}

// setupLogging configures the global logrus logger from LOG_FORMAT and LOG_LEVEL.
func setupLogging(app config.AppConfig) {
	if app.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(app.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if app.Dev && level < log.DebugLevel {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

func newPhotoFetcher(limits config.LimitsConfig) *report.HTTPPhotoFetcher {
	var opts []report.FetcherOption
	if limits.PhotoPrivateHosts {
		log.Warn("photo fetcher may reach private network addresses")
		opts = append(opts, report.AllowPrivateHosts())
	}
	return report.NewHTTPPhotoFetcher(limits.PhotoFetchTimeout, opts...)
}
