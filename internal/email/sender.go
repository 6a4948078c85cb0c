package email

import (
	"context"
	"strings"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// Sender is the interface that all email providers must implement.
type Sender interface {
	// Send delivers msg and returns the provider-assigned message ID.
	Send(ctx context.Context, msg Message) (string, error)
}

// Message represents an email message to be sent.
type Message struct {
	From     string   // sender address
	To       []string // recipient addresses
	Subject  string   // email subject
	TextBody string   // plain-text alternative
	HTMLBody string   // HTML alternative
}

// Mailer addresses composed bodies from the configured sender to the
// configured recipients.
type Mailer struct {
	sender     Sender
	from       string
	recipients []string
	log        *logger.Logger
}

// NewMailer creates a new Mailer.
func NewMailer(sender Sender, from string, recipients []string, log *logger.Logger) *Mailer {
	return &Mailer{
		sender:     sender,
		from:       from,
		recipients: recipients,
		log:        log.WithComponent("mailer"),
	}
}

// Send validates the addressing configuration and submits the message.
func (m *Mailer) Send(ctx context.Context, subject, text, html string) (string, error) {
	if strings.TrimSpace(m.from) == "" {
		return "", apperr.Configuration("SENDER_EMAIL is required")
	}
	if len(m.recipients) == 0 {
		return "", apperr.Configuration("RECIPIENT_EMAILS is required")
	}

	id, err := m.sender.Send(ctx, Message{
		From:     m.from,
		To:       m.recipients,
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	})
	if err != nil {
		return "", err
	}

	m.log.Info().
		Str("message_id", id).
		Strs("recipients", m.recipients).
		Msg("email sent")
	return id, nil
}
