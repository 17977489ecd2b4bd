package report

import (
	"errors"
	"time"
)

// Choice field names on the reports list. The valid values for each are
// owned by the record store's schema, not by this package.
const (
	FieldStatus         = "Status"
	FieldClassification = "Classification"
	FieldDOTMLPF        = "DOTMLPF"
)

// Domain errors
var (
	ErrEmptyTitle     = errors.New("report title is required")
	ErrEmptyEventName = errors.New("event name is required")
	ErrEmptyTopic     = errors.New("topic is required")
	ErrNoObserver     = errors.New("observed-by is required")
	ErrNotFound       = errors.New("report not found")
)

// UserRef is a reference to a user held by the record store.
type UserRef struct {
	ID    int
	Title string // display name
	Email string
}

// Report is one observation report row in the remote list.
// The record store is the single source of truth; instances held here are
// read-only copies replaced wholesale on every load.
type Report struct {
	ID              int
	Title           string
	EventName       string
	Topic           string
	ObservedBy      UserRef
	Observation     string // rich text (markdown)
	ObservationDate time.Time
	Classification  string // choice
	SubmittedOPR    string
	DOTMLPF         string // choice
	Discussion      string // rich text (markdown)
	Recommendations string // rich text (markdown)
	Implications    string
	Keywords        string
	Status          string // choice
	EmailRecipients []UserRef
	Editor          UserRef   // last modifying user
	Modified        time.Time // last modified timestamp
}

// Validate checks if the Report has the fields required to be stored.
// PRE: Report struct is populated from a form submission
// POST: Returns nil if valid, a domain error otherwise
func (r *Report) Validate() error {
	if r.Title == "" {
		return ErrEmptyTitle
	}
	if r.EventName == "" {
		return ErrEmptyEventName
	}
	if r.Topic == "" {
		return ErrEmptyTopic
	}
	if r.ObservedBy.ID == 0 {
		return ErrNoObserver
	}
	return nil
}

// RecipientAddresses returns the stored recipient email addresses, skipping
// entries without one.
func (r *Report) RecipientAddresses() []string {
	var out []string
	for _, u := range r.EmailRecipients {
		if u.Email != "" {
			out = append(out, u.Email)
		}
	}
	return out
}

// Capability is what the current user may do on the dashboard. It replaces a
// raw admin boolean so further roles can be added without flag proliferation.
type Capability int

const (
	CapabilityViewer Capability = iota
	CapabilityEditor
)

// CanEdit reports whether the capability allows create/edit/delete/email.
func (c Capability) CanEdit() bool {
	return c == CapabilityEditor
}

// String returns the capability name for logging.
func (c Capability) String() string {
	if c == CapabilityEditor {
		return "editor"
	}
	return "viewer"
}
