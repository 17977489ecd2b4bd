package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"obsdash/internal/adapters/http/middleware"
	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/application/datasource"
	"obsdash/internal/application/listutil"
	"obsdash/internal/application/orchestrators"
	"obsdash/internal/domain/report"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// statusClass maps a status value to the table cell's highlight class. The
// value set comes from field metadata, so unknown values simply get no
// highlight rather than an error.
func statusClass(status string) string {
	switch strings.ToLower(status) {
	case "closed":
		return "status-closed"
	case "in-progress":
		return "status-progress"
	case "in-valid":
		return "status-invalid"
	case "late":
		return "status-late"
	default:
		return ""
	}
}

func (a *App) renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	id, _ := middleware.GetIdentityFromContext(r.Context())

	funcMap := template.FuncMap{
		"currentUser": func() string { return id.Name },
		"csrfToken":   func() string { return csrf.Token(r) },
		"appVersion":  func() string { return a.version },
		"statusClass": statusClass,
		"fmtModified": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 02, 2006")
		},
		"fmtObserved": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("01-02-2006 15:04")
		},
		"fmtDateInput": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02T15:04")
		},
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
		"recipientIDs": func(users []report.UserRef) string {
			parts := make([]string, 0, len(users))
			for _, u := range users {
				parts = append(parts, strconv.Itoa(u.ID))
			}
			return strings.Join(parts, ", ")
		},
		"sortHeaderArgs": func(col, label string, p listutil.TableParams) map[string]any {
			nextDir := "asc"
			if col == p.Sort && p.Dir == "asc" {
				nextDir = "desc"
			}
			return map[string]any{
				"Col": col, "Label": label,
				"ActiveSort": p.Sort, "ActiveDir": p.Dir, "NextDir": nextDir,
				"Search": p.Search, "Statuses": p.Statuses,
			}
		},
	}

	layoutPath := filepath.Join(a.templatesDir, "layout.html")
	pagePath := filepath.Join(a.templatesDir, templateName)
	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFiles(layoutPath, pagePath)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tpl.Execute(w, data); err != nil {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// ready returns the session user's initialized data source, rendering the
// error page itself when initialization fails. The dashboard never renders
// a partial view over a failed load.
func (a *App) ready(w http.ResponseWriter, r *http.Request) (*datasource.DataSource, bool) {
	ds, err := a.source(r)
	if err != nil {
		slog.Error("dashboard_init_failed", "error", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		a.renderTemplate(w, r, "error.html", map[string]any{
			"Message": "The dashboard could not load its data. Please try again.",
		})
		return nil, false
	}
	return ds, true
}

// requireEditor renders a 403 unless the session user holds the Editor
// capability. Capability comes from the data source, resolved once at
// initialization, fail-closed.
func (a *App) requireEditor(w http.ResponseWriter, r *http.Request, ds *datasource.DataSource) bool {
	if ds.Capability().CanEdit() {
		return true
	}
	id, _ := middleware.GetIdentityFromContext(r.Context())
	slog.Warn("auth_denied", "path", r.URL.Path, "user_id", id.UserID,
		"capability", ds.Capability().String())
	http.Error(w, "Forbidden", http.StatusForbidden)
	return false
}

// findReport looks a report up in the current snapshot.
func findReport(ds *datasource.DataSource, id int) (report.Report, bool) {
	for _, item := range ds.Snapshot() {
		if item.ID == id {
			return item, true
		}
	}
	return report.Report{}, false
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil && id > 0
}

// handleDashboard handles GET / — the report table with sort, search, and
// status filters.
func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Legacy deep link: ?ID=n opens one report directly.
	if raw := r.URL.Query().Get("ID"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			http.Redirect(w, r, "/reports/"+strconv.Itoa(id), http.StatusSeeOther)
			return
		}
	}

	ds, ok := a.ready(w, r)
	if !ok {
		return
	}

	params := listutil.ParseTableParams(r.URL.Query())
	snapshot := ds.Snapshot()
	rows := listutil.Apply(snapshot, params)

	a.renderTemplate(w, r, "dashboard.html", map[string]any{
		"Rows":          rows,
		"Total":         len(snapshot),
		"Params":        params,
		"StatusChoices": ds.StatusChoices(),
		"CanEdit":       ds.Capability().CanEdit(),
		"HasFilters":    params.Search != "" || len(params.Statuses) > 0,
	})
}

// handleRefresh handles POST /refresh — a full re-initialization, so a
// changed configuration document or group membership is picked up too.
func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := a.source(r)
	if err == nil && ds.State() == datasource.StateReady {
		_, err = ds.Load(r.Context())
	}
	if err != nil {
		slog.Error("dashboard_refresh_failed", "error", err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleReportView handles GET /reports/{id}. Editors are dispatched to the
// edit form; viewers get the read-only view.
func (a *App) handleReportView(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	if ds.Capability().CanEdit() {
		http.Redirect(w, r, "/reports/"+strconv.Itoa(id)+"/edit", http.StatusSeeOther)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}
	a.renderTemplate(w, r, "report_view.html", map[string]any{
		"Report": item,
	})
}

// choiceSets fetches the form's choice fields. Status comes from the data
// source (fetched at initialization); the other two are read per render.
func (a *App) choiceSets(r *http.Request, ds *datasource.DataSource) (map[string]any, error) {
	classifications, err := a.store.FieldChoices(r.Context(), report.FieldClassification)
	if err != nil {
		return nil, err
	}
	dotmlpf, err := a.store.FieldChoices(r.Context(), report.FieldDOTMLPF)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"StatusChoices":         ds.StatusChoices(),
		"ClassificationChoices": classifications,
		"DOTMLPFChoices":        dotmlpf,
	}, nil
}

func (a *App) renderReportForm(w http.ResponseWriter, r *http.Request, ds *datasource.DataSource, item report.Report, formErr string) {
	data, err := a.choiceSets(r, ds)
	if err != nil {
		internalError(w, err)
		return
	}
	data["Report"] = item
	data["IsNew"] = item.ID == 0
	data["Error"] = formErr
	a.renderTemplate(w, r, "report_form.html", data)
}

// handleReportNewForm handles GET /reports/new.
func (a *App) handleReportNewForm(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	a.renderReportForm(w, r, ds, report.Report{ObservationDate: timeNow()}, "")
}

// parseReportForm maps a form submission onto the save input. Recipients are
// entered as comma-separated user ids; blanks are skipped.
func parseReportForm(r *http.Request) (orchestrators.SaveReportInput, error) {
	if err := r.ParseForm(); err != nil {
		return orchestrators.SaveReportInput{}, err
	}
	input := orchestrators.SaveReportInput{
		Title:           strings.TrimSpace(r.FormValue("Title")),
		EventName:       strings.TrimSpace(r.FormValue("EventName")),
		Topic:           strings.TrimSpace(r.FormValue("Topic")),
		Observation:     r.FormValue("Observation"),
		Classification:  r.FormValue("Classification"),
		SubmittedOPR:    r.FormValue("SubmittedOPR"),
		DOTMLPF:         r.FormValue("DOTMLPF"),
		Discussion:      r.FormValue("Discussion"),
		Recommendations: r.FormValue("Recommendations"),
		Implications:    r.FormValue("Implications"),
		Keywords:        r.FormValue("Keywords"),
		Status:          r.FormValue("Status"),
	}
	input.ObservedByID, _ = strconv.Atoi(r.FormValue("ObservedBy"))
	if raw := r.FormValue("ObservationDate"); raw != "" {
		if t, err := time.Parse("2006-01-02T15:04", raw); err == nil {
			input.ObservationDate = t
		}
	}
	for _, part := range strings.Split(r.FormValue("Recipients"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return input, errors.New("recipients must be a comma-separated list of user ids")
		}
		input.RecipientIDs = append(input.RecipientIDs, id)
	}
	return input, nil
}

// reportFromInput echoes submitted values back into the form on a
// validation error, so the user doesn't lose their entry.
func reportFromInput(input orchestrators.SaveReportInput) report.Report {
	item := report.Report{
		ID:              input.ID,
		Title:           input.Title,
		EventName:       input.EventName,
		Topic:           input.Topic,
		ObservedBy:      report.UserRef{ID: input.ObservedByID},
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
		item.EmailRecipients = append(item.EmailRecipients, report.UserRef{ID: id})
	}
	return item
}

func (a *App) saveReport(w http.ResponseWriter, r *http.Request, ds *datasource.DataSource, id int) {
	input, err := parseReportForm(r)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	input.ID = id

	_, err = orchestrators.ExecuteSaveReport(r.Context(), input, orchestrators.SaveReportDeps{
		Store: a.store,
		Users: a.store,
	})
	if err != nil {
		// The record may have been deleted by another editor since the
		// snapshot loaded.
		if mapNotFound(w, err) {
			return
		}
		a.renderReportForm(w, r, ds, reportFromInput(input), err.Error())
		return
	}

	if _, err := ds.Load(r.Context()); err != nil {
		slog.Error("dashboard_refresh_failed", "error", err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleReportCreate handles POST /reports/new.
func (a *App) handleReportCreate(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	a.saveReport(w, r, ds, 0)
}

// handleReportEditForm handles GET /reports/{id}/edit.
func (a *App) handleReportEditForm(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}
	a.renderReportForm(w, r, ds, item, "")
}

// handleReportUpdate handles POST /reports/{id}/edit.
func (a *App) handleReportUpdate(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	if _, found := findReport(ds, id); !found {
		http.NotFound(w, r)
		return
	}
	a.saveReport(w, r, ds, id)
}

// handleReportDeleteConfirm handles GET /reports/{id}/delete — the
// confirmation page. Nothing is deleted until the form posts back.
func (a *App) handleReportDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}
	a.renderTemplate(w, r, "report_delete.html", map[string]any{
		"Report": item,
	})
}

// handleReportDelete handles POST /reports/{id}/delete. The snapshot is
// refreshed only after a successful delete; on failure the confirmation page
// re-renders with the error.
func (a *App) handleReportDelete(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}

	err := orchestrators.ExecuteDeleteReport(r.Context(), id, orchestrators.DeleteReportDeps{
		Store: a.store,
	})
	if err != nil {
		if mapNotFound(w, err) {
			return
		}
		a.renderTemplate(w, r, "report_delete.html", map[string]any{
			"Report": item,
			"Error":  "Delete failed: " + err.Error(),
		})
		return
	}

	if _, err := ds.Load(r.Context()); err != nil {
		slog.Error("dashboard_refresh_failed", "error", err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleReportEmailForm handles GET /reports/{id}/email — the compose page,
// subject pre-filled from the report title.
func (a *App) handleReportEmailForm(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}
	a.renderTemplate(w, r, "report_email.html", map[string]any{
		"Report":     item,
		"Subject":    item.Title,
		"Recipients": item.RecipientAddresses(),
	})
}

// handleReportEmailSend handles POST /reports/{id}/email. A failed send
// re-renders the compose page with the error; nothing pretends success.
func (a *App) handleReportEmailSend(w http.ResponseWriter, r *http.Request) {
	ds, ok := a.ready(w, r)
	if !ok {
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	item, found := findReport(ds, id)
	if !found {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	input := orchestrators.SendReportEmailInput{
		Report:  item,
		Subject: r.FormValue("Subject"),
		Body:    r.FormValue("Body"),
	}
	err := orchestrators.ExecuteSendReportEmail(r.Context(), input, orchestrators.SendReportEmailDeps{
		Sender:  a.sender,
		From:    a.emailFrom,
		ReplyTo: a.emailReplyTo,
	})
	if err != nil {
		a.renderTemplate(w, r, "report_email.html", map[string]any{
			"Report":     item,
			"Subject":    input.Subject,
			"Body":       input.Body,
			"Recipients": item.RecipientAddresses(),
			"Error":      "Send failed: " + err.Error(),
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handlePerfStats handles GET /api/admin/perf — request timing aggregates
// for editors.
func (a *App) handlePerfStats(w http.ResponseWriter, r *http.Request) {
	ds, err := a.source(r)
	if err != nil {
		internalError(w, err)
		return
	}
	if !a.requireEditor(w, r, ds) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.collector.Stats())
}

// mapNotFound converts a store not-found error to a 404 response body.
func mapNotFound(w http.ResponseWriter, err error) bool {
	if errors.Is(err, recordstore.ErrNotFound) {
		http.Error(w, "report not found", http.StatusNotFound)
		return true
	}
	return false
}
