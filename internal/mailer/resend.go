package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendTransport sends through the Resend transactional email API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

// NewResendTransport creates an API transport whose HTTP calls are bounded by timeout.
func NewResendTransport(apiKey, from string, timeout time.Duration) *ResendTransport {
	httpClient := &http.Client{Timeout: timeout}
	return &ResendTransport{client: resend.NewCustomClient(httpClient, apiKey), from: from}
}

func (t *ResendTransport) Name() string { return "resend" }

func (t *ResendTransport) Send(ctx context.Context, m Message) error {
	req := &resend.SendEmailRequest{
		From:    t.from,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Text,
	}
	for _, a := range m.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Content:  a.Data,
			Filename: a.Filename,
		})
	}
	sent, err := t.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend send: empty message id")
	}
	return nil
}
