package orchestrators

import (
	"context"
	"errors"
	"log/slog"
)

// ErrInvalidReportID guards delete/email flows against a missing id.
var ErrInvalidReportID = errors.New("report id must be positive")

// ReportDeleter is the store slice needed to delete a report.
type ReportDeleter interface {
	DeleteReport(ctx context.Context, id int) error
}

// DeleteReportDeps holds dependencies for DeleteReport.
type DeleteReportDeps struct {
	Store ReportDeleter
}

// ExecuteDeleteReport removes one report from the record store. Exactly one
// delete call is issued; the caller refreshes the snapshot afterwards only
// on success.
// PRE: caller has Editor capability and has confirmed the deletion
// POST: Report removed, or the error is returned with no side effects
func ExecuteDeleteReport(ctx context.Context, id int, deps DeleteReportDeps) error {
	if id <= 0 {
		return ErrInvalidReportID
	}
	if err := deps.Store.DeleteReport(ctx, id); err != nil {
		return err
	}
	slog.Info("report_event", "event", "report_deleted", "report_id", id)
	return nil
}
