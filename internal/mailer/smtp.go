package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/diewo77/field-reports/internal/config"
	"github.com/wneessen/go-mail"
)

// SMTPTransport sends through a mail server. Port 465 uses implicit TLS,
// anything else opportunistic STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPTransport reads host, port, credentials and sender from cfg.
func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	return &SMTPTransport{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		timeout:  cfg.SendTimeout,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	msg, err := t.buildMessage(m)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(t.host, t.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(t.port)}
	if t.timeout > 0 {
		opts = append(opts, mail.WithTimeout(t.timeout))
	}
	if t.port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if t.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.user),
			mail.WithPassword(t.password),
		)
	}
	return opts
}

func (t *SMTPTransport) buildMessage(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(t.from); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", t.from, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("smtp recipients: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	for _, a := range m.Attachments {
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType))); err != nil {
			return nil, fmt.Errorf("smtp attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}
