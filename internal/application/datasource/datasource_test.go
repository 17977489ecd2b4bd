package datasource_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/application/datasource"
	"obsdash/internal/domain/report"
)

const testUserID = 7

func seededStore() *recordstore.MemoryClient {
	m := recordstore.NewMemoryClient()
	m.SetChoices(report.FieldStatus, []string{"New", "Valid", "In-valid", "In-progress", "Closed"})
	m.SetOwners(testUserID)
	m.SeedReport(report.Report{Title: "Comms gap", EventName: "Ex Alpha", Topic: "Radio", Status: "New",
		ObservedBy: report.UserRef{ID: testUserID, Title: "J. Smith"}})
	m.SeedReport(report.Report{Title: "Supply delay", EventName: "Ex Alpha", Topic: "Logistics", Status: "Closed",
		ObservedBy: report.UserRef{ID: testUserID, Title: "J. Smith"}})
	return m
}

// TestInit_HappyPath verifies the full sequence resolves and every accessor
// is populated afterwards.
func TestInit_HappyPath(t *testing.T) {
	m := seededStore()
	ds := datasource.New(m, "", testUserID)

	if ds.State() != datasource.StateUninitialized {
		t.Fatalf("state = %v before Init, want uninitialized", ds.State())
	}
	if err := ds.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if ds.State() != datasource.StateReady {
		t.Errorf("state = %v, want ready", ds.State())
	}
	if ds.Capability() != report.CapabilityEditor {
		t.Errorf("capability = %v, want editor", ds.Capability())
	}
	want := []string{"New", "Valid", "In-valid", "In-progress", "Closed"}
	got := ds.StatusChoices()
	if len(got) != len(want) {
		t.Fatalf("StatusChoices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StatusChoices()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(ds.Snapshot()) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(ds.Snapshot()))
	}
}

// TestInit_ConfigDrivesAccessProbe verifies ordering: the group named in the
// configuration document (loaded in the first step) decides which group the
// access step probes.
func TestInit_ConfigDrivesAccessProbe(t *testing.T) {
	m := seededStore()
	m.SetFile("/cfg.json", []byte(`{"adminGroupName":"Report Admins"}`))
	m.SetGroup("Report Admins", testUserID)

	ds := datasource.New(m, "/cfg.json", testUserID)
	if err := ds.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(m.GroupProbes) != 1 || m.GroupProbes[0] != "byname:Report Admins" {
		t.Errorf("probes = %v, want exactly one probe of the configured group", m.GroupProbes)
	}
	if ds.Configuration().AdminGroupName != "Report Admins" {
		t.Errorf("Configuration().AdminGroupName = %q", ds.Configuration().AdminGroupName)
	}
}

// TestInit_MissingConfigStillSucceeds verifies configuration fallback never
// aborts the chain; a user outside the owner group ends up a viewer.
func TestInit_MissingConfigStillSucceeds(t *testing.T) {
	m := seededStore()
	m.SetOwners() // nobody

	ds := datasource.New(m, "", testUserID)
	if err := ds.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if ds.Capability() != report.CapabilityViewer {
		t.Errorf("capability = %v, want viewer", ds.Capability())
	}
}

// TestInit_MetadataFailureAbortsChain verifies a field-metadata failure is
// propagated, moves the state machine to Failed, and leaves no snapshot.
func TestInit_MetadataFailureAbortsChain(t *testing.T) {
	m := seededStore()
	m.FieldErr = errors.New("schema unavailable")

	ds := datasource.New(m, "", testUserID)
	if err := ds.Init(context.Background()); err == nil {
		t.Fatal("Init() = nil, want error")
	}
	if ds.State() != datasource.StateFailed {
		t.Errorf("state = %v, want failed", ds.State())
	}
	if ds.Err() == nil {
		t.Error("Err() = nil after failed init")
	}
	if ds.Snapshot() != nil {
		t.Error("snapshot populated despite aborted init")
	}
	if m.QueryCalls != 0 {
		t.Errorf("QueryCalls = %d, want 0 (records step must not run)", m.QueryCalls)
	}
}

// TestInit_RecordFailureAbortsChain verifies a record-fetch failure fails
// the whole init.
func TestInit_RecordFailureAbortsChain(t *testing.T) {
	m := seededStore()
	m.QueryErr = errors.New("store down")

	ds := datasource.New(m, "", testUserID)
	if err := ds.Init(context.Background()); err == nil {
		t.Fatal("Init() = nil, want error")
	}
	if ds.State() != datasource.StateFailed {
		t.Errorf("state = %v, want failed", ds.State())
	}
}

// TestLoad_ReplacesSnapshotWholesale verifies two sequential loads each
// replace the snapshot completely — never a mix of the two sets.
func TestLoad_ReplacesSnapshotWholesale(t *testing.T) {
	m := seededStore()
	ds := datasource.New(m, "", testUserID)
	if err := ds.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first := ds.Snapshot()

	added := m.SeedReport(report.Report{Title: "New finding", EventName: "Ex Bravo", Topic: "Medical",
		Status: "Valid", ObservedBy: report.UserRef{ID: testUserID, Title: "J. Smith"}})

	second, err := ds.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(second) != len(first)+1 {
		t.Fatalf("second load size = %d, want %d", len(second), len(first)+1)
	}
	found := false
	for _, r := range second {
		if r.ID == added.ID {
			found = true
		}
	}
	if !found {
		t.Error("second snapshot missing the newly seeded report")
	}
	// The accessor must now serve exactly the second set.
	if len(ds.Snapshot()) != len(second) {
		t.Errorf("Snapshot() size = %d, want %d", len(ds.Snapshot()), len(second))
	}
}

// TestLoad_FailureKeepsPriorSnapshot verifies no partial apply on reload
// failure.
func TestLoad_FailureKeepsPriorSnapshot(t *testing.T) {
	m := seededStore()
	ds := datasource.New(m, "", testUserID)
	if err := ds.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	before := len(ds.Snapshot())

	m.QueryErr = errors.New("store down")
	if _, err := ds.Load(context.Background()); err == nil {
		t.Fatal("Load() = nil, want error")
	}
	if len(ds.Snapshot()) != before {
		t.Errorf("snapshot changed on failed load: %d != %d", len(ds.Snapshot()), before)
	}
}

// gatedStore blocks QueryReports until released, so concurrent callers
// genuinely overlap.
type gatedStore struct {
	*recordstore.MemoryClient
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (g *gatedStore) QueryReports(ctx context.Context) ([]report.Report, error) {
	g.once.Do(func() { close(g.started) })
	<-g.gate
	return g.MemoryClient.QueryReports(ctx)
}

// TestInit_ConcurrentCallsCoalesce verifies concurrent Init calls share one
// underlying fetch sequence instead of racing duplicates.
func TestInit_ConcurrentCallsCoalesce(t *testing.T) {
	g := &gatedStore{
		MemoryClient: seededStore(),
		gate:         make(chan struct{}),
		started:      make(chan struct{}),
	}
	ds := datasource.New(g, "", testUserID)

	const callers = 4
	errs := make(chan error, callers)
	go func() { errs <- ds.Init(context.Background()) }()
	<-g.started // first caller is blocked inside the record fetch

	// Joiners arrive while the first call is provably still in flight.
	for i := 1; i < callers; i++ {
		go func() { errs <- ds.Init(context.Background()) }()
	}
	time.Sleep(50 * time.Millisecond) // let joiners reach the guard
	close(g.gate)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	}
	if g.QueryCalls != 1 {
		t.Errorf("QueryCalls = %d, want 1 (calls must coalesce)", g.QueryCalls)
	}
	if ds.State() != datasource.StateReady {
		t.Errorf("state = %v, want ready", ds.State())
	}
}
