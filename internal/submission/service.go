// Package submission runs the record submission pipeline: admission, validation,
// persistence, report synthesis and best-effort notification.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/internal/mailer"
	"github.com/diewo77/field-reports/internal/metrics"
	"github.com/diewo77/field-reports/internal/models"
	"github.com/diewo77/field-reports/internal/report"
	"github.com/diewo77/field-reports/internal/store"
	"github.com/diewo77/field-reports/validation"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("daily submission limit reached")
)

// ReportBuilder renders report data into a document.
type ReportBuilder interface {
	Build(ctx context.Context, d report.Data) (*report.Document, error)
}

// Notifier delivers a report email and reports whether it went out.
type Notifier interface {
	SendReportEmail(ctx context.Context, job mailer.Job) bool
}

// Outcome is the result of a successful submission.
type Outcome[T any] struct {
	Record     *T
	Message    string
	ReportSent bool
}

// Service orchestrates submissions.
type Service struct {
	store    store.Store
	reports  ReportBuilder
	notifier Notifier
	limit    int
	now      func() time.Time
}

// NewService creates the orchestrator. A limit <= 0 disables the daily quota.
func NewService(st store.Store, reports ReportBuilder, notifier Notifier, limit int) *Service {
	return &Service{store: st, reports: reports, notifier: notifier, limit: limit, now: time.Now}
}

// Limit returns the per-user daily submission quota.
func (s *Service) Limit() int { return s.limit }

// SubmitIntervention validates, stores and reports an intervention.
func (s *Service) SubmitIntervention(ctx context.Context, p auth.Principal, in InterventionInput) (*Outcome[models.Intervention], error) {
	kind := models.KindIntervention
	if err := s.admit(ctx, p, kind); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, s.rejected(kind, p, err)
	}

	rec := in.record(p)
	rec.CreatedAt = s.now()
	if err := s.store.CreateIntervention(ctx, rec); err != nil {
		return nil, s.failed(kind, p, err)
	}

	sent, err := s.deliver(ctx, kind, rec.ID, report.InterventionData(rec, author(p)), "New Intervention Report - "+rec.SiteName)
	if err != nil {
		return nil, s.failed(kind, p, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.OutcomeCreated).Inc()
	return &Outcome[models.Intervention]{Record: rec, Message: "Intervention submitted successfully.", ReportSent: sent}, nil
}

// SubmitReclamation validates, stores and reports a reclamation.
func (s *Service) SubmitReclamation(ctx context.Context, p auth.Principal, in ReclamationInput) (*Outcome[models.Reclamation], error) {
	kind := models.KindReclamation
	if err := s.admit(ctx, p, kind); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, s.rejected(kind, p, err)
	}

	rec := in.record(p)
	rec.CreatedAt = s.now()
	if err := s.store.CreateReclamation(ctx, rec); err != nil {
		return nil, s.failed(kind, p, err)
	}

	sent, err := s.deliver(ctx, kind, rec.ID, report.ReclamationData(rec, author(p)), "New Reclamation Report - "+rec.StationName)
	if err != nil {
		return nil, s.failed(kind, p, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.OutcomeCreated).Inc()
	return &Outcome[models.Reclamation]{Record: rec, Message: "Reclamation submitted successfully.", ReportSent: sent}, nil
}

// admit authenticates and applies the daily quota. The count-then-insert
// sequence is not atomic; concurrent requests may overshoot by a few.
func (s *Service) admit(ctx context.Context, p auth.Principal, kind models.RecordKind) error {
	if p.IsZero() {
		return ErrUnauthorized
	}
	if s.limit <= 0 {
		return nil
	}
	count, err := s.store.CountToday(ctx, p.ID, s.now())
	if err != nil {
		return s.failed(kind, p, err)
	}
	if count >= int64(s.limit) {
		metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.OutcomeRateLimited).Inc()
		log.WithFields(log.Fields{"user_id": p.ID, "kind": kind, "count": count}).Info("submission rate limited")
		return ErrRateLimited
	}
	return nil
}

// deliver synthesizes the report and hands it to the notifier. Only synthesis
// failures are returned; delivery failures surface as sent == false.
func (s *Service) deliver(ctx context.Context, kind models.RecordKind, recordID string, data report.Data, subject string) (bool, error) {
	doc, err := s.reports.Build(ctx, data)
	if err != nil {
		var se *report.SynthesisError
		if !errors.As(err, &se) {
			err = &report.SynthesisError{Err: err}
		}
		return false, err
	}

	sent := s.notifier.SendReportEmail(ctx, mailer.Job{
		Recipients: data.Recipients,
		Subject:    subject,
		Document:   doc.Bytes,
		Filename:   ReportFilename(kind, data.CreatedAt),
		Kind:       kind,
	})
	log.WithFields(log.Fields{
		"record_id":   recordID,
		"kind":        kind,
		"report_sent": sent,
		"has_photo":   doc.HasPhoto,
	}).Info("record submitted")
	return sent, nil
}

func (s *Service) rejected(kind models.RecordKind, p auth.Principal, err error) error {
	var ve *validation.Error
	if errors.As(err, &ve) {
		metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.OutcomeInvalid).Inc()
		return err
	}
	return s.failed(kind, p, fmt.Errorf("validate %s: %w", kind, err))
}

func (s *Service) failed(kind models.RecordKind, p auth.Principal, err error) error {
	metrics.SubmissionsTotal.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
	log.WithFields(log.Fields{"user_id": p.ID, "kind": kind, "err": err}).Error("submission failed")
	return err
}

func author(p auth.Principal) report.Author {
	return report.Author{ID: p.ID, Name: p.Name}
}

// ReportFilename names the attachment after the record's creation instant,
// e.g. Intervention_Report_2024-01-01T10-00-00-000Z.docx.
func ReportFilename(kind models.RecordKind, createdAt time.Time) string {
	ts := createdAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	prefix := "Intervention"
	if kind == models.KindReclamation {
		prefix = "Reclamation"
	}
	return prefix + "_Report_" + ts + ".docx"
}
