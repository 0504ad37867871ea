// Package mailer delivers report emails over a transactional API, SMTP, or both.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/field-reports/internal/config"
	log "github.com/sirupsen/logrus"
)

// placeholderAPIKey is the value shipped in sample env files; it never selects the API transport.
const placeholderAPIKey = "dummy-key"

// ErrNoTransport is returned when neither the API key nor an SMTP host is configured.
var ErrNoTransport = errors.New("no mail transport configured")

// Attachment is one file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email with attachments.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Transport sends one message. Implementations must honour ctx.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// NewTransport selects the transport once at startup: the transactional API when
// a real key is present, with SMTP behind it as fallback when an SMTP host is set;
// SMTP alone otherwise; a disabled transport when nothing is configured. SMTP
// without a user relays unauthenticated.
func NewTransport(cfg config.MailConfig) Transport {
	var chain []Transport
	if key := strings.TrimSpace(cfg.ResendAPIKey); key != "" && key != placeholderAPIKey {
		chain = append(chain, NewResendTransport(key, cfg.ResendFrom, cfg.SendTimeout))
	}
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		chain = append(chain, NewSMTPTransport(cfg))
	}
	switch len(chain) {
	case 0:
		log.Warn("no mail transport configured, report emails will not be sent")
		return disabledTransport{}
	case 1:
		return chain[0]
	default:
		return NewFailover(chain...).WithAttemptTimeout(cfg.SendTimeout)
	}
}

type disabledTransport struct{}

func (disabledTransport) Name() string { return "disabled" }

func (disabledTransport) Send(context.Context, Message) error { return ErrNoTransport }

// Failover tries each transport in order until one succeeds. With an attempt
// timeout set, each transport gets its own deadline so a hung primary cannot
// starve the fallback.
type Failover struct {
	transports     []Transport
	attemptTimeout time.Duration
}

// NewFailover chains transports, primary first.
func NewFailover(transports ...Transport) *Failover {
	return &Failover{transports: transports}
}

// WithAttemptTimeout returns a copy of f bounding every transport call by d.
func (f *Failover) WithAttemptTimeout(d time.Duration) *Failover {
	return &Failover{transports: f.transports, attemptTimeout: d}
}

// Attempts is the number of chained transports.
func (f *Failover) Attempts() int { return len(f.transports) }

// Name joins the chained transport names, e.g. "resend+smtp".
func (f *Failover) Name() string {
	names := make([]string, len(f.transports))
	for i, t := range f.transports {
		names[i] = t.Name()
	}
	return strings.Join(names, "+")
}

// Send returns nil on the first success, or every transport's error joined.
func (f *Failover) Send(ctx context.Context, msg Message) error {
	if len(f.transports) == 0 {
		return ErrNoTransport
	}
	var errs []error
	for i, t := range f.transports {
		err := f.attempt(ctx, t, msg)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(f.transports)-1 {
			log.WithFields(log.Fields{"transport": t.Name(), "err": err}).Warn("mail transport failed, falling back")
		}
	}
	return errors.Join(errs...)
}

func (f *Failover) attempt(ctx context.Context, t Transport, msg Message) error {
	if f.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
	}
	return t.Send(ctx, msg)
}
