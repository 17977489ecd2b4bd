package email

import (
	"context"
)

// SendRequest contains the data for one outbound notification email.
type SendRequest struct {
	To      []string // Recipient addresses, from the report's stored recipient list
	From    string   // Sender address; empty means the sender's default
	Subject string
	HTML    string // HTML body: user text plus the generated report summary
	ReplyTo string
}

// Sender delivers notification emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) error
}
