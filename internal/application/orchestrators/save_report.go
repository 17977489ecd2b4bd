package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"obsdash/internal/domain/report"
)

// ReportWriter is the store slice needed to create or update a report.
type ReportWriter interface {
	CreateReport(ctx context.Context, r report.Report) (report.Report, error)
	UpdateReport(ctx context.Context, r report.Report) (report.Report, error)
}

// UserResolver looks up store users referenced by a form submission.
type UserResolver interface {
	UserByID(ctx context.Context, id int) (report.UserRef, error)
}

// SaveReportInput carries a create or edit form submission.
type SaveReportInput struct {
	ID              int // 0 for create, existing id for update
	Title           string
	EventName       string
	Topic           string
	ObservedByID    int
	Observation     string
	ObservationDate time.Time
	Classification  string
	SubmittedOPR    string
	DOTMLPF         string
	Discussion      string
	Recommendations string
	Implications    string
	Keywords        string
	Status          string
	RecipientIDs    []int
}

// SaveReportDeps holds dependencies for SaveReport.
type SaveReportDeps struct {
	Store ReportWriter
	Users UserResolver
}

// ExecuteSaveReport validates the submission and creates or updates the
// report in the record store. The store owns the audit pair (Editor,
// Modified); whatever it returns is authoritative.
// PRE: caller has Editor capability (enforced at the HTTP layer)
// POST: Report persisted; the stored version is returned
func ExecuteSaveReport(ctx context.Context, input SaveReportInput, deps SaveReportDeps) (report.Report, error) {
	observedBy, err := deps.Users.UserByID(ctx, input.ObservedByID)
	if err != nil && input.ObservedByID != 0 {
		return report.Report{}, err
	}

	r := report.Report{
		ID:              input.ID,
		Title:           input.Title,
		EventName:       input.EventName,
		Topic:           input.Topic,
		ObservedBy:      observedBy,
		Observation:     input.Observation,
		ObservationDate: input.ObservationDate,
		Classification:  input.Classification,
		SubmittedOPR:    input.SubmittedOPR,
		DOTMLPF:         input.DOTMLPF,
		Discussion:      input.Discussion,
		Recommendations: input.Recommendations,
		Implications:    input.Implications,
		Keywords:        input.Keywords,
		Status:          input.Status,
	}
	for _, id := range input.RecipientIDs {
		u, err := deps.Users.UserByID(ctx, id)
		if err != nil {
			slog.Warn("report_event", "event", "recipient_lookup_failed", "user_id", id, "error", err)
			continue
		}
		r.EmailRecipients = append(r.EmailRecipients, u)
	}

	if err := r.Validate(); err != nil {
		return report.Report{}, err
	}

	var stored report.Report
	if input.ID == 0 {
		stored, err = deps.Store.CreateReport(ctx, r)
	} else {
		stored, err = deps.Store.UpdateReport(ctx, r)
	}
	if err != nil {
		return report.Report{}, err
	}

	event := "report_created"
	if input.ID != 0 {
		event = "report_updated"
	}
	slog.Info("report_event", "event", event, "report_id", stored.ID, "title", stored.Title)
	return stored, nil
}
