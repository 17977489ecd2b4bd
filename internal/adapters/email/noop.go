package email

import (
	"context"
	"log/slog"
)

// NoopSender logs sends without delivering. Used when no provider is
// configured so the email flow still completes locally.
type NoopSender struct{}

// NewNoopSender creates a sender that only logs.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the would-be email and succeeds.
// PRE: none
// POST: Nothing delivered; request details logged
func (s *NoopSender) Send(_ context.Context, req SendRequest) error {
	slog.Info("noop_email_send", "to", req.To, "subject", req.Subject, "body_bytes", len(req.HTML))
	return nil
}
