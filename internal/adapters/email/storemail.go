package email

import (
	"context"
	"fmt"
	"log/slog"

	"obsdash/internal/adapters/recordstore"
)

// StoreSender delivers mail through the record store's own send-mail
// endpoint, for deployments where outbound mail must go via the host site
// rather than an external provider.
type StoreSender struct {
	store recordstore.Client
}

// NewStoreSender creates a sender backed by the record store.
// PRE: store is non-nil
// POST: Returns a ready-to-use sender
func NewStoreSender(store recordstore.Client) *StoreSender {
	return &StoreSender{store: store}
}

// Send dispatches one message via the store. From/ReplyTo are ignored; the
// store sends on behalf of the site.
// PRE: req has at least one recipient and a subject
// POST: Message accepted by the store for delivery
func (s *StoreSender) Send(ctx context.Context, req SendRequest) error {
	err := s.store.SendMail(ctx, recordstore.Message{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.HTML,
	})
	if err != nil {
		slog.Error("storemail_send_failed", "error", err, "to", req.To, "subject", req.Subject)
		return fmt.Errorf("store mail send failed: %w", err)
	}
	slog.Info("storemail_sent", "to", req.To, "subject", req.Subject)
	return nil
}
