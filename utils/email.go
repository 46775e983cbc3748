package utils

import (
	"gopkg.in/gomail.v2"
)

// Mailer sends HTML mail through an SMTP relay.
type Mailer struct {
	From   string
	dialer *gomail.Dialer
}

func NewMailer(host string, port int, user, pass string) *Mailer {
	return &Mailer{
		From:   user,
		dialer: gomail.NewDialer(host, port, user, pass),
	}
}

func (m *Mailer) SendEmail(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	return m.dialer.DialAndSend(msg)
}
