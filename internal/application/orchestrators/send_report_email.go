package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	emailAdapter "obsdash/internal/adapters/email"
	"obsdash/internal/domain/report"
)

// Flow errors
var (
	ErrNoRecipients = errors.New("report has no recipients with an email address")
	ErrEmptySubject = errors.New("a subject is required to send an email")
	ErrEmptyBody    = errors.New("content is required to send an email")
)

// summaryRenderer converts the report's rich-text fields for the summary
// block. Raw HTML in the markdown is escaped (WithUnsafe is NOT set).
var summaryRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// SendReportEmailInput carries a compose-form submission.
type SendReportEmailInput struct {
	Report  report.Report
	Subject string
	Body    string // plain text from the compose form
}

// SendReportEmailDeps holds dependencies for SendReportEmail.
type SendReportEmailDeps struct {
	Sender  emailAdapter.Sender
	From    string
	ReplyTo string
}

// ExecuteSendReportEmail sends one notification email: the user-entered body
// (line breaks converted to markup) followed by a generated summary block
// enumerating the report's fields. Recipients come from the report's stored
// recipient list. Exactly one send call is issued; send failure is returned
// to the caller rather than swallowed.
// PRE: caller has Editor capability
// POST: One email dispatched to all recipients, or an error with nothing sent
func ExecuteSendReportEmail(ctx context.Context, input SendReportEmailInput, deps SendReportEmailDeps) error {
	if strings.TrimSpace(input.Subject) == "" {
		return ErrEmptySubject
	}
	if strings.TrimSpace(input.Body) == "" {
		return ErrEmptyBody
	}
	to := input.Report.RecipientAddresses()
	if len(to) == 0 {
		return ErrNoRecipients
	}

	userText := strings.ReplaceAll(html.EscapeString(input.Body), "\n", "<br />")
	body := userText + reportSummaryHTML(input.Report)

	err := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      to,
		From:    deps.From,
		Subject: input.Subject,
		HTML:    body,
		ReplyTo: deps.ReplyTo,
	})
	if err != nil {
		return err
	}

	slog.Info("email_event", "event", "report_email_sent", "report_id", input.Report.ID,
		"recipient_count", len(to), "subject", input.Subject)
	return nil
}

// reportSummaryHTML builds the generated summary block appended to every
// notification email.
func reportSummaryHTML(r report.Report) string {
	var b strings.Builder
	b.WriteString("<h3><u>Observation Summary</u></h3>")
	writeSummaryLine(&b, "Title", r.Title)
	writeSummaryLine(&b, "Event Name", r.EventName)
	writeSummaryLine(&b, "Topic", r.Topic)
	writeSummaryLine(&b, "Observed By", r.ObservedBy.Title)
	writeSummaryRich(&b, "Observation", r.Observation)
	if !r.ObservationDate.IsZero() {
		writeSummaryLine(&b, "Observation Date", r.ObservationDate.Format("01-02-2006 15:04"))
	}
	writeSummaryLine(&b, "Classification", r.Classification)
	writeSummaryLine(&b, "Submitted Recommended OPR", r.SubmittedOPR)
	writeSummaryLine(&b, "DOTMLPF", r.DOTMLPF)
	writeSummaryRich(&b, "Discussion", r.Discussion)
	writeSummaryRich(&b, "Recommendations", r.Recommendations)
	writeSummaryLine(&b, "Implications", r.Implications)
	writeSummaryLine(&b, "Keywords", r.Keywords)
	writeSummaryLine(&b, "Status", r.Status)
	b.WriteString("<br />")
	return b.String()
}

func writeSummaryLine(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<p><strong>%s: </strong>%s</p>", label, html.EscapeString(value))
}

// writeSummaryRich renders a markdown field; on a render error the raw text
// is escaped instead.
func writeSummaryRich(b *strings.Builder, label, value string) {
	var buf bytes.Buffer
	if err := summaryRenderer.Convert([]byte(value), &buf); err != nil {
		writeSummaryLine(b, label, value)
		return
	}
	fmt.Fprintf(b, "<p><strong>%s: </strong></p>%s", label, buf.String())
}
