// Package listutil parses and applies the dashboard table's sort, search,
// and status-filter parameters. Unlike a database-backed list view, the
// dashboard filters an in-memory snapshot, so application happens here
// rather than in SQL.
package listutil

import (
	"net/url"
	"sort"
	"strings"

	"obsdash/internal/domain/report"
)

// TableParams carries the dashboard table's view parameters.
type TableParams struct {
	Sort     string   // column name, empty for store order
	Dir      string   // "asc" or "desc"
	Search   string   // free-text search query
	Statuses []string // selected status filters; empty means all
}

// SortColumns are the columns the table can be ordered by.
var SortColumns = []string{"title", "event", "topic", "status", "modified"}

// ParseTableParams extracts view parameters from URL query values.
// PRE: none
// POST: Sort is an allowed column or empty; Dir is "asc" or "desc"
func ParseTableParams(q url.Values) TableParams {
	p := TableParams{
		Sort:   q.Get("sort"),
		Dir:    q.Get("dir"),
		Search: strings.TrimSpace(q.Get("q")),
	}
	if !allowedSort(p.Sort) {
		p.Sort = ""
	}
	if p.Dir != "asc" && p.Dir != "desc" {
		p.Dir = "asc"
	}
	for _, s := range q["status"] {
		if s != "" {
			p.Statuses = append(p.Statuses, s)
		}
	}
	return p
}

// Apply filters and sorts a snapshot according to the parameters. The input
// slice is never mutated; a filtered copy is returned.
// PRE: items is a snapshot from the data source
// POST: Returns matching items; order is the store's unless Sort is set
func Apply(items []report.Report, p TableParams) []report.Report {
	out := make([]report.Report, 0, len(items))
	for _, r := range items {
		if matchStatus(r, p.Statuses) && matchSearch(r, p.Search) {
			out = append(out, r)
		}
	}
	if p.Sort != "" {
		sortReports(out, p.Sort, p.Dir == "desc")
	}
	return out
}

func allowedSort(col string) bool {
	for _, c := range SortColumns {
		if col == c {
			return true
		}
	}
	return false
}

func matchStatus(r report.Report, statuses []string) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

func matchSearch(r report.Report, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, field := range []string{
		r.Title, r.EventName, r.Topic, r.Observation, r.Discussion,
		r.Recommendations, r.Implications, r.Keywords, r.SubmittedOPR,
		r.ObservedBy.Title,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func sortReports(items []report.Report, col string, desc bool) {
	less := func(a, b report.Report) bool {
		switch col {
		case "title":
			return a.Title < b.Title
		case "event":
			return a.EventName < b.EventName
		case "topic":
			return a.Topic < b.Topic
		case "status":
			return a.Status < b.Status
		case "modified":
			return a.Modified.Before(b.Modified)
		}
		return a.ID < b.ID
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
