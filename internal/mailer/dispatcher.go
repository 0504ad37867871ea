package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/field-reports/internal/docx"
	"github.com/diewo77/field-reports/internal/metrics"
	"github.com/diewo77/field-reports/internal/models"
	log "github.com/sirupsen/logrus"
)

// Job is one report email: consumed once, discarded whatever the outcome.
type Job struct {
	Recipients []string
	Subject    string
	Document   []byte
	Filename   string
	Kind       models.RecordKind
}

// Dispatcher delivers report emails through an injected transport.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
}

// NewDispatcher wraps transport; every send is bounded by timeout. A failover
// chain gets timeout per transport, and the whole send gets one timeout per
// chained transport.
func NewDispatcher(transport Transport, timeout time.Duration) *Dispatcher {
	if transport == nil {
		transport = disabledTransport{}
	}
	if f, ok := transport.(*Failover); ok && timeout > 0 {
		if f.attemptTimeout <= 0 {
			f = f.WithAttemptTimeout(timeout)
			transport = f
		}
		timeout = f.attemptTimeout * time.Duration(max(f.Attempts(), 1))
	}
	return &Dispatcher{transport: transport, timeout: timeout}
}

// TransportName reports the configured transport, for startup logging.
func (d *Dispatcher) TransportName() string { return d.transport.Name() }

// SendReportEmail attempts delivery and reports whether it succeeded. It never
// returns an error and never panics: every failure is logged and yields false.
// Delivery outlives a cancelled request but not the dispatcher timeout.
func (d *Dispatcher) SendReportEmail(ctx context.Context, job Job) (sent bool) {
	entry := log.WithFields(log.Fields{
		"kind":       job.Kind,
		"transport":  d.transport.Name(),
		"recipients": len(job.Recipients),
		"filename":   job.Filename,
	})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("mail transport panicked")
			sent = false
		}
		result := "failed"
		if sent {
			result = "sent"
		}
		metrics.ReportDeliveriesTotal.WithLabelValues(string(job.Kind), d.transport.Name(), result).Inc()
	}()

	if len(job.Recipients) == 0 {
		entry.Warn("report email skipped: no recipients")
		return false
	}

	ctx = context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msg := Message{
		To:      job.Recipients,
		Subject: job.Subject,
		Text:    fmt.Sprintf("Please find the attached %s report.", job.Kind),
		Attachments: []Attachment{{
			Filename:    job.Filename,
			ContentType: docx.ContentType,
			Data:        job.Document,
		}},
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		entry.WithError(err).Error("report email not delivered")
		return false
	}
	entry.Info("report email delivered")
	return true
}
