package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/httpx"
	"github.com/diewo77/field-reports/internal/db"
	"github.com/diewo77/field-reports/internal/metrics"
	"github.com/diewo77/field-reports/internal/policy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	db        *gorm.DB
	routerCfg *policy.RouterConfig
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(conn *gorm.DB, routerCfg *policy.RouterConfig) *App {
	app := &App{
		mux:       http.NewServeMux(),
		db:        conn,
		routerCfg: routerCfg,
	}
	app.setupRoutes()
	app.handler = app.withLogging(routerCfg.Verifier.Middleware(app.mux))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Submissions (require a session)
	// ─────────────────────────────────────────────────────────────────────────
	sh := a.routerCfg.Submissions
	a.mux.Handle("POST /interventions", a.requireAuth(sh.CreateIntervention))
	a.mux.Handle("POST /reclamations", a.requireAuth(sh.CreateReclamation))

	// ─────────────────────────────────────────────────────────────────────────
	// Records (owner or admin, checked by the record gate)
	// ─────────────────────────────────────────────────────────────────────────
	rh := a.routerCfg.Records
	a.mux.Handle("GET /interventions/{id}", a.requireAuth(rh.GetIntervention))
	a.mux.Handle("GET /reclamations/{id}", a.requireAuth(rh.GetReclamation))
	a.mux.Handle("GET /records", a.requireAuth(rh.List))
	a.mux.Handle("DELETE /records", a.requireAuth(rh.DeleteMine))
	a.mux.Handle("GET /export", a.requireAuth(a.routerCfg.Export.Export))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /admin/records", a.requireAdmin(rh.AdminList))
	a.mux.Handle("DELETE /admin/interventions/{id}", a.requireAdmin(rh.AdminDeleteIntervention))
	a.mux.Handle("DELETE /admin/reclamations/{id}", a.requireAdmin(rh.AdminDeleteReclamation))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) requireAuth(next http.HandlerFunc) http.Handler {
	return auth.RequireAuth(next)
}

func (a *App) requireAdmin(next http.HandlerFunc) http.Handler {
	return auth.RequireAuth(auth.RequireAdmin(next))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging logs every request and records it in the HTTP metrics, labelled
// by route pattern so path parameters do not explode cardinality.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, pattern := a.mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.ResponseTime.WithLabelValues(r.Method, pattern).Observe(elapsed.Seconds())
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": elapsed.String(),
		}).Info("request")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(a.db); err != nil {
		log.WithError(err).Warn("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
