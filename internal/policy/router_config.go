package policy

import (
	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/gate"
	"github.com/diewo77/field-reports/internal/config"
	"github.com/diewo77/field-reports/internal/handlers"
	"github.com/diewo77/field-reports/internal/mailer"
	"github.com/diewo77/field-reports/internal/report"
	"github.com/diewo77/field-reports/internal/store"
	"github.com/diewo77/field-reports/internal/submission"
)

// RouterConfig holds the configured handlers and authorization pieces the
// router mounts.
type RouterConfig struct {
	Verifier *auth.Verifier
	Gate     *gate.Gate[auth.Principal]

	Submissions *handlers.SubmissionHandler
	Records     *handlers.RecordsHandler
	Export      *handlers.ExportHandler

	Service    *submission.Service
	Dispatcher *mailer.Dispatcher
}

// Deps are the collaborators NewRouterConfig wires together. Transport and
// Photos may be nil, which disables mail delivery and report photos.
type Deps struct {
	Store     store.Store
	Transport mailer.Transport
	Photos    report.PhotoFetcher
}

// NewRouterConfig wires the submission pipeline, the record gate and the handlers.
func NewRouterConfig(cfg *config.Config, deps Deps) *RouterConfig {
	verifier := auth.NewVerifier(cfg.Auth.SessionSecret, func(p auth.Principal) bool {
		return cfg.App.IsAdminEmail(p.Email)
	})
	recordGate := NewRecordGate()

	dispatcher := mailer.NewDispatcher(deps.Transport, cfg.Mail.SendTimeout)
	svc := submission.NewService(deps.Store, report.NewSynthesizer(deps.Photos), dispatcher, cfg.Limits.DailySubmissions)

	return &RouterConfig{
		Verifier:    verifier,
		Gate:        recordGate,
		Submissions: handlers.NewSubmissionHandler(svc),
		Records:     handlers.NewRecordsHandler(deps.Store, recordGate),
		Export:      handlers.NewExportHandler(deps.Store, recordGate),
		Service:     svc,
		Dispatcher:  dispatcher,
	}
}
