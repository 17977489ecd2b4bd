package recordstore_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/devstore"
	"obsdash/internal/domain/report"
)

// newTestServer runs a devstore over an in-memory database and returns a
// REST client pointed at it.
func newTestServer(t *testing.T) (*recordstore.RESTClient, *devstore.SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "devstore.db")+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := devstore.InitDB(db); err != nil {
		t.Fatalf("init db: %v", err)
	}
	if err := devstore.Seed(db); err != nil {
		t.Fatalf("seed db: %v", err)
	}

	store := devstore.NewSQLiteStore(db)
	srv := httptest.NewServer(devstore.NewHandler(store))
	t.Cleanup(srv.Close)

	return recordstore.NewRESTClient(srv.URL, "Observation Reports"), store, db
}

// TestRESTClient_ItemLifecycle walks a report through create, query, update,
// and delete against the devstore.
func TestRESTClient_ItemLifecycle(t *testing.T) {
	client, store, _ := newTestServer(t)
	ctx := context.Background()

	store.AddUser(ctx, 1, "Olive Observer", "olive@example.mil")
	store.AddUser(ctx, 2, "Rex Recipient", "rex@example.mil")

	created, err := client.CreateReport(ctx, report.Report{
		Title:           "Convoy delay",
		EventName:       "Exercise Saber",
		Topic:           "Movement",
		ObservedBy:      report.UserRef{ID: 1},
		Observation:     "Route clearance took twice the planned time.",
		ObservationDate: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC),
		Status:          "New",
		EmailRecipients: []report.UserRef{{ID: 2}},
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("created report has no id")
	}
	if created.Modified.IsZero() {
		t.Errorf("store did not set Modified")
	}
	if created.ObservedBy.Email != "olive@example.mil" {
		t.Errorf("ObservedBy not expanded: %+v", created.ObservedBy)
	}
	if len(created.EmailRecipients) != 1 || created.EmailRecipients[0].Email != "rex@example.mil" {
		t.Errorf("recipients not expanded: %+v", created.EmailRecipients)
	}

	items, err := client.QueryReports(ctx)
	if err != nil {
		t.Fatalf("QueryReports: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Convoy delay" {
		t.Fatalf("query returned %+v, want the created report", items)
	}

	created.Status = "Closed"
	updated, err := client.UpdateReport(ctx, created)
	if err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}
	if updated.Status != "Closed" {
		t.Errorf("Status = %q after update, want Closed", updated.Status)
	}

	if err := client.DeleteReport(ctx, created.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	items, _ = client.QueryReports(ctx)
	if len(items) != 0 {
		t.Errorf("report still present after delete")
	}
	if err := client.DeleteReport(ctx, created.ID); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

// TestRESTClient_FieldChoices verifies choices arrive in schema order and
// unknown fields map to ErrNotFound.
func TestRESTClient_FieldChoices(t *testing.T) {
	client, _, _ := newTestServer(t)
	ctx := context.Background()

	choices, err := client.FieldChoices(ctx, report.FieldStatus)
	if err != nil {
		t.Fatalf("FieldChoices: %v", err)
	}
	want := []string{"New", "Valid", "In-valid", "In-progress", "Closed"}
	if len(choices) != len(want) {
		t.Fatalf("choices = %v, want %v", choices, want)
	}
	for i := range want {
		if choices[i] != want[i] {
			t.Errorf("choices[%d] = %q, want %q (schema order)", i, choices[i], want[i])
		}
	}

	if _, err := client.FieldChoices(ctx, "NoSuchField"); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("unknown field: err = %v, want ErrNotFound", err)
	}
}

// TestRESTClient_MembershipProbes verifies both probe endpoints answer
// membership with nil and everything else with ErrNotFound.
func TestRESTClient_MembershipProbes(t *testing.T) {
	client, store, _ := newTestServer(t)
	ctx := context.Background()

	store.AddOwner(ctx, 7)
	store.AddGroupMember(ctx, "Report Admins", 5)

	if err := client.OwnerGroupMember(ctx, 7); err != nil {
		t.Errorf("owner probe for member: %v, want nil", err)
	}
	if err := client.OwnerGroupMember(ctx, 3); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("owner probe for non-member: %v, want ErrNotFound", err)
	}
	if err := client.GroupMember(ctx, "Report Admins", 5); err != nil {
		t.Errorf("group probe for member: %v, want nil", err)
	}
	if err := client.GroupMember(ctx, "Report Admins", 7); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("group probe for non-member: %v, want ErrNotFound", err)
	}
	if err := client.GroupMember(ctx, "No Such Group", 5); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("probe of unknown group: %v, want ErrNotFound", err)
	}
}

// TestRESTClient_FileContent verifies file fetches round-trip verbatim.
func TestRESTClient_FileContent(t *testing.T) {
	client, store, _ := newTestServer(t)
	ctx := context.Background()

	cfg := []byte(`{"adminGroupName":"Report Admins"}`)
	store.PutFile(ctx, "/siteassets/report-dashboard/config.json", cfg)

	got, err := client.FileContent(ctx, "/siteassets/report-dashboard/config.json")
	if err != nil {
		t.Fatalf("FileContent: %v", err)
	}
	if string(got) != string(cfg) {
		t.Errorf("content = %q, want %q", got, cfg)
	}

	if _, err := client.FileContent(ctx, "/missing.json"); !errors.Is(err, recordstore.ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}
}

// TestRESTClient_SendMail verifies the send endpoint logs one message.
func TestRESTClient_SendMail(t *testing.T) {
	client, _, db := newTestServer(t)
	ctx := context.Background()

	err := client.SendMail(ctx, recordstore.Message{
		To:      []string{"a@example.mil", "b@example.mil"},
		Subject: "Observation update",
		Body:    "<p>Hello</p>",
	})
	if err != nil {
		t.Fatalf("SendMail: %v", err)
	}

	var n int
	var recipients string
	if err := db.QueryRow("SELECT COUNT(*), MAX(recipients) FROM outbound_mail").Scan(&n, &recipients); err != nil {
		t.Fatalf("query outbound_mail: %v", err)
	}
	if n != 1 {
		t.Fatalf("outbound_mail rows = %d, want 1", n)
	}
	if recipients != "a@example.mil;b@example.mil" {
		t.Errorf("recipients = %q", recipients)
	}
}
