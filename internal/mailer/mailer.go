// Package mailer delivers HTML email.  The auth services only see the
// Mailer interface: a message goes in, a delivered/not-delivered flag
// comes out, and retries are left to the caller.
package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/iliyamo/storefront-auth/internal/config"
)

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends a message and reports whether the transport accepted it.
type Mailer interface {
	Send(ctx context.Context, msg Message) bool
}

// SMTPMailer sends through an SMTP relay.  Port 465 uses implicit TLS,
// other ports upgrade with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg    config.MailConfig
	log    *zap.SugaredLogger
	dialer *mail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig, log *zap.SugaredLogger) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{cfg: cfg, log: log, dialer: d}
}

// Send builds the message and dials the relay.  Failures are logged and
// reported as false.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) bool {
	if err := ctx.Err(); err != nil {
		m.log.Warnw("email not sent", "to", msg.To, "err", err)
		return false
	}
	em := mail.NewMessage()
	em.SetAddressHeader("From", m.cfg.User, m.cfg.FromName)
	em.SetHeader("To", msg.To)
	em.SetHeader("Subject", msg.Subject)
	em.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(em); err != nil {
		m.log.Errorw("email send failed", "to", msg.To, "subject", msg.Subject, "err", err)
		return false
	}
	m.log.Infow("email sent", "to", msg.To, "subject", msg.Subject)
	return true
}

// LogMailer writes messages to the log instead of sending them.  It is
// used in development when no SMTP user is configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) Send(_ context.Context, msg Message) bool {
	m.log.Infow("email (not sent, dev mailer)", "to", msg.To, "subject", msg.Subject, "html", msg.HTML)
	return true
}
