package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender implements ports.EmailTransport over SendGrid's v3 API.
type EmailSender struct {
	from   *mail.Email
	client *sendgrid.Client
}

// NewEmailSender creates a sender with the given SendGrid API key and
// from-address. The dispatcher decides whether and what to send; this type
// only delivers.
func NewEmailSender(apiKey, fromEmail, fromName string) *EmailSender {
	return &EmailSender{
		from:   mail.NewEmail(fromName, fromEmail),
		client: sendgrid.NewSendClient(apiKey),
	}
}

// Send delivers a plain-text alert email to one recipient.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	m := mail.NewV3MailInit(s.from, subject, mail.NewEmail("", to), mail.NewContent("text/plain", body))

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("notify.EmailSender.Send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify.EmailSender.Send: %s: status %d: %s", to, resp.StatusCode, resp.Body)
	}
	return nil
}
