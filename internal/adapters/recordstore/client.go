// Package recordstore talks to the remote list store that owns the report
// data. The rest of the application depends only on the Client interface,
// never on the transport.
package recordstore

import (
	"context"
	"errors"

	"obsdash/internal/domain/report"
)

// ErrNotFound is returned when the store has no matching item, field, group
// or user.
var ErrNotFound = errors.New("recordstore: not found")

// Message is an outbound mail request handed to the store's send-mail
// endpoint. Fire-and-forget from the caller's perspective.
type Message struct {
	To      []string
	Subject string
	Body    string // HTML
}

// Client is the operation surface of the remote record store.
type Client interface {
	// QueryReports fetches the full report set in one request, bounded by
	// the store's fixed upper item count. Order follows the store's status
	// ordering; user references come back expanded.
	QueryReports(ctx context.Context) ([]report.Report, error)

	CreateReport(ctx context.Context, r report.Report) (report.Report, error)
	UpdateReport(ctx context.Context, r report.Report) (report.Report, error)
	DeleteReport(ctx context.Context, id int) error

	// FieldChoices returns the ordered choice set for a choice-typed field
	// on the reports list.
	FieldChoices(ctx context.Context, fieldName string) ([]string, error)

	// GroupMember returns nil iff the user is a member of the named site
	// group. Unknown group and non-membership both surface as errors.
	GroupMember(ctx context.Context, groupName string, userID int) error

	// OwnerGroupMember returns nil iff the user is a member of the site's
	// default owner group.
	OwnerGroupMember(ctx context.Context, userID int) error

	UserByID(ctx context.Context, id int) (report.UserRef, error)

	// FileContent fetches a site-relative file's raw bytes.
	FileContent(ctx context.Context, path string) ([]byte, error)

	SendMail(ctx context.Context, msg Message) error
}
