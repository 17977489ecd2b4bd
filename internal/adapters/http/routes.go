package web

import "net/http"

// registerRoutes maps URLs to handlers. Mutating routes are POST-only; the
// capability check lives in each handler because it depends on the session
// user's data source.
func (a *App) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleDashboard)
	mux.HandleFunc("POST /refresh", a.handleRefresh)

	mux.HandleFunc("GET /reports/new", a.handleReportNewForm)
	mux.HandleFunc("POST /reports/new", a.handleReportCreate)
	mux.HandleFunc("GET /reports/{id}", a.handleReportView)
	mux.HandleFunc("GET /reports/{id}/edit", a.handleReportEditForm)
	mux.HandleFunc("POST /reports/{id}/edit", a.handleReportUpdate)
	mux.HandleFunc("GET /reports/{id}/delete", a.handleReportDeleteConfirm)
	mux.HandleFunc("POST /reports/{id}/delete", a.handleReportDelete)
	mux.HandleFunc("GET /reports/{id}/email", a.handleReportEmailForm)
	mux.HandleFunc("POST /reports/{id}/email", a.handleReportEmailSend)

	mux.HandleFunc("GET /api/admin/perf", a.handlePerfStats)
}
