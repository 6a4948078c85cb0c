package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// LogSender logs emails instead of sending them. Useful for dry runs.
type LogSender struct {
	log *logger.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender creates a new log-based email sender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("log_sender")}
}

// Send logs the email details and returns a synthetic message ID.
func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	id := "dry-run-" + uuid.NewString()
	s.log.Info().
		Str("message_id", id).
		Str("from", msg.From).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("text", msg.TextBody).
		Msg("EMAIL (dry run - not actually sent)")
	return id, nil
}
