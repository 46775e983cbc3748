package notify

import (
	"context"
	"fmt"
	"html"
)

// Mailer is satisfied by *utils.Mailer.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// EmailSink mails messages that carry a recipient address and skips the rest.
type EmailSink struct {
	mailer Mailer
}

func NewEmailSink(m Mailer) *EmailSink {
	return &EmailSink{mailer: m}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, msg Message) error {
	if msg.RecipientEmail == "" {
		return nil
	}
	subject := msg.Subject
	if subject == "" {
		subject = "Appointment update"
	}
	body := fmt.Sprintf(`
		<p>%s</p>
		<p>Best regards,</p>
		<p>Your Care Team</p>
	`, html.EscapeString(msg.Text))

	if err := s.mailer.SendEmail(msg.RecipientEmail, subject, body); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}
