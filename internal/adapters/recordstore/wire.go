package recordstore

import (
	"time"

	"obsdash/internal/domain/report"
)

// wireTime is the timestamp layout used on the wire.
const wireTime = time.RFC3339

// WireUser is the JSON shape of an expanded user reference.
type WireUser struct {
	ID    int    `json:"Id"`
	Title string `json:"Title"`
	EMail string `json:"EMail,omitempty"`
}

// WireItem is the JSON shape of one report list item. Field names follow
// the store's internal column names.
type WireItem struct {
	ID              int        `json:"Id"`
	Title           string     `json:"Title"`
	EventName       string     `json:"EventName"`
	Topic           string     `json:"Topic"`
	ObservedBy      WireUser   `json:"ObservedBy"`
	Observation     string     `json:"Observation"`
	ObservationDate string     `json:"ObservationDate,omitempty"`
	Classification  string     `json:"Classification"`
	SubmittedOPR    string     `json:"SubmittedRecommendedOPR"`
	DOTMLPF         string     `json:"DOTMLPF"`
	Discussion      string     `json:"Discussion"`
	Recommendations string     `json:"Recommendations"`
	Implications    string     `json:"Implications"`
	Keywords        string     `json:"Keywords"`
	Status          string     `json:"Status"`
	EmailRecipients []WireUser `json:"EmailRecipients,omitempty"`
	Editor          WireUser   `json:"Editor"`
	Modified        string     `json:"Modified,omitempty"`
}

// ToDomain converts a wire item to the domain type. Unparseable timestamps
// come back as zero times rather than errors; the store is authoritative and
// the dashboard renders what it can.
func (w WireItem) ToDomain() report.Report {
	r := report.Report{
		ID:              w.ID,
		Title:           w.Title,
		EventName:       w.EventName,
		Topic:           w.Topic,
		ObservedBy:      w.ObservedBy.toDomain(),
		Observation:     w.Observation,
		Classification:  w.Classification,
		SubmittedOPR:    w.SubmittedOPR,
		DOTMLPF:         w.DOTMLPF,
		Discussion:      w.Discussion,
		Recommendations: w.Recommendations,
		Implications:    w.Implications,
		Keywords:        w.Keywords,
		Status:          w.Status,
		Editor:          w.Editor.toDomain(),
	}
	if t, err := time.Parse(wireTime, w.ObservationDate); err == nil {
		r.ObservationDate = t
	}
	if t, err := time.Parse(wireTime, w.Modified); err == nil {
		r.Modified = t
	}
	for _, u := range w.EmailRecipients {
		r.EmailRecipients = append(r.EmailRecipients, u.toDomain())
	}
	return r
}

// FromDomain converts a domain report to its wire shape.
func FromDomain(r report.Report) WireItem {
	w := WireItem{
		ID:              r.ID,
		Title:           r.Title,
		EventName:       r.EventName,
		Topic:           r.Topic,
		ObservedBy:      fromDomainUser(r.ObservedBy),
		Observation:     r.Observation,
		Classification:  r.Classification,
		SubmittedOPR:    r.SubmittedOPR,
		DOTMLPF:         r.DOTMLPF,
		Discussion:      r.Discussion,
		Recommendations: r.Recommendations,
		Implications:    r.Implications,
		Keywords:        r.Keywords,
		Status:          r.Status,
		Editor:          fromDomainUser(r.Editor),
	}
	if !r.ObservationDate.IsZero() {
		w.ObservationDate = r.ObservationDate.UTC().Format(wireTime)
	}
	if !r.Modified.IsZero() {
		w.Modified = r.Modified.UTC().Format(wireTime)
	}
	for _, u := range r.EmailRecipients {
		w.EmailRecipients = append(w.EmailRecipients, fromDomainUser(u))
	}
	return w
}

func (w WireUser) toDomain() report.UserRef {
	return report.UserRef{ID: w.ID, Title: w.Title, Email: w.EMail}
}

func fromDomainUser(u report.UserRef) WireUser {
	return WireUser{ID: u.ID, Title: u.Title, EMail: u.Email}
}
