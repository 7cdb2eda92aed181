package channel

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"vn.io.arda/marketplace-notification/internal/config"
)

// Email delivers HTML email. Send never returns an error: provider failures are
// logged and reported as false.
type Email interface {
	Send(ctx context.Context, to, subject, html string) bool
	Enabled() bool
}

// NewEmail returns the SMTP channel when cfg is complete, otherwise the disabled one.
func NewEmail(cfg config.SMTPConfig, timeout time.Duration) Email {
	if !cfg.Complete() {
		log.Warn().Msg("smtp not configured, email channel disabled")
		return DisabledEmail{}
	}
	return &SMTPEmail{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:    cfg.From,
		timeout: timeout,
	}
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPEmail sends through an SMTP server.
type SMTPEmail struct {
	dialer  mailDialer
	from    string
	timeout time.Duration
}

func (e *SMTPEmail) Enabled() bool { return true }

func (e *SMTPEmail) Send(ctx context.Context, to, subject, html string) bool {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	start := time.Now()
	err := withTimeout(ctx, "email", e.timeout, func() error { return e.dialer.DialAndSend(m) })
	if err != nil {
		sends.WithLabelValues("email", "failed").Inc()
		log.Error().Err(err).Str("channel", "email").Str("to", to).Str("subject", subject).
			Dur("elapsed", time.Since(start)).Msg("email send failed")
		return false
	}

	sends.WithLabelValues("email", "sent").Inc()
	log.Info().Str("channel", "email").Str("to", to).Str("subject", subject).
		Dur("elapsed", time.Since(start)).Msg("email sent")
	return true
}

// DisabledEmail is used when SMTP credentials are missing.
type DisabledEmail struct{}

func (DisabledEmail) Enabled() bool { return false }

func (DisabledEmail) Send(_ context.Context, to, subject, _ string) bool {
	sends.WithLabelValues("email", "disabled").Inc()
	log.Debug().Str("channel", "email").Str("to", to).Str("subject", subject).Msg("email channel disabled, skipping send")
	return false
}
