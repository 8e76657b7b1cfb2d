// Package mailer implements the email mirror over SMTP. Delivery is
// best-effort by design: the dispatcher logs failures and never lets an
// email problem block a chat notification.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/edgard/intakebot/internal/config"
)

// Mailer sends plain-text mail with optional file attachments. It satisfies
// notify.EmailSender. A nil Mailer (SMTP not configured) is a no-op.
type Mailer struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewMailer creates a Mailer from SMTP configuration. Returns nil (and no
// error) when no host is configured, which disables the mirror.
func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithSSL(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &Mailer{
		client: client,
		from:   cfg.From,
		logger: logger.With("component", "mailer"),
	}, nil
}

// Send delivers one plain-text message. Attachment paths, when given, are
// attached by filename.
func (m *Mailer) Send(ctx context.Context, subject, body, to string, attachmentPaths ...string) error {
	if m == nil {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	for _, path := range attachmentPaths {
		msg.AttachFile(path)
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	m.logger.DebugContext(ctx, "Email sent successfully", "to", to, "subject", subject)
	return nil
}
