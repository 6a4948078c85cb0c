package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/credential"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// GmailConfig holds the configuration for the Gmail email sender.
type GmailConfig struct {
	// Endpoint overrides the Gmail API base URL; empty uses the default.
	Endpoint string
}

// GmailSender implements Sender using the Gmail API. A fresh credential is
// obtained from the store on every send.
type GmailSender struct {
	store    credential.Store
	endpoint string
	log      *logger.Logger
}

var _ Sender = (*GmailSender)(nil)

// NewGmailSender creates a new GmailSender.
func NewGmailSender(store credential.Store, cfg GmailConfig, log *logger.Logger) *GmailSender {
	return &GmailSender{
		store:    store,
		endpoint: cfg.Endpoint,
		log:      log.WithComponent("gmail"),
	}
}

// Send sends an email via the Gmail API "send as me" operation.
func (g *GmailSender) Send(ctx context.Context, msg Message) (string, error) {
	cred, err := credential.LoadOrRefresh(ctx, g.store)
	if err != nil {
		g.log.Error().Err(err).Msg("no usable Gmail credential")
		return "", err
	}

	opts := []option.ClientOption{option.WithHTTPClient(cred.HTTPClient(ctx))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return "", apperr.Upstream("gmail: failed to create service", err)
	}

	raw, err := BuildMIME(msg)
	if err != nil {
		return "", err
	}

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := svc.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		event := g.log.Error().Err(err)
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			event = event.Int("status", gerr.Code).Str("body", gerr.Body)
		}
		event.Msg("gmail send failed")
		return "", apperr.Upstream("gmail: failed to send email", err)
	}
	if sent == nil || sent.Id == "" {
		return "", apperr.Upstream("gmail: send returned no message id", nil)
	}

	g.log.Debug().Str("message_id", sent.Id).Str("thread_id", sent.ThreadId).Msg("gmail accepted message")
	return sent.Id, nil
}

// String implements fmt.Stringer for startup logs
func (g *GmailSender) String() string {
	return fmt.Sprintf("gmail(endpoint=%q)", g.endpoint)
}
