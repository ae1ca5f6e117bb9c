// Package mailer composes the system's notification mails and delivers
// them over SMTP.  Composition is pure; delivery happens on the queue
// consumer, never on a request path.
package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SMTPSender delivers mail through a single relay with plain auth.  Each
// Send retries a few times with a short pause; anything still failing is
// reported to the queue consumer, which drops the message.
type SMTPSender struct {
	host    string
	port    int
	user    string
	pass    string
	from    string
	retries int
	log     *zap.Logger
}

func NewSMTPSender(host string, port int, user, pass, from string, log *zap.Logger) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, pass: pass, from: from, retries: 3, log: log}
}

// Send delivers one message to all recipients.
func (s *SMTPSender) Send(to []string, subject, body string) error {
	msg := s.encode(to, subject, body)
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		err = smtp.SendMail(addr, auth, s.from, to, msg)
		if err == nil {
			return nil
		}
		s.log.Warn("smtp send failed",
			zap.Int("attempt", attempt),
			zap.Strings("to", to),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return fmt.Errorf("smtp send after %d attempts: %w", s.retries, err)
}

// LogSender stands in when no SMTP relay is configured.  Messages are
// written to the log so local development still shows what would go out.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(to []string, subject, body string) error {
	s.Log.Info("mail (delivery disabled)",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

func (s *SMTPSender) encode(to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
