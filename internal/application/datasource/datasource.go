// Package datasource orchestrates the dashboard's data: the ordered
// initialization sequence (configuration → access → field metadata →
// records) and the records-only reload used after every mutation.
package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"obsdash/internal/application/access"
	"obsdash/internal/application/configload"
	"obsdash/internal/domain/report"
)

// State tracks initialization progress. Each step must complete before the
// next begins: access resolution needs the configuration, and records load
// last so filters and capability-gated buttons are ready at first render.
type State int

const (
	StateUninitialized State = iota
	StateLoadingConfig
	StateLoadingAccess
	StateLoadingMetadata
	StateLoadingRecords
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StateUninitialized:   "uninitialized",
	StateLoadingConfig:   "loading_config",
	StateLoadingAccess:   "loading_access",
	StateLoadingMetadata: "loading_metadata",
	StateLoadingRecords:  "loading_records",
	StateReady:           "ready",
	StateFailed:          "failed",
}

// String returns the state name for logging.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Store is the slice of the record store the data source depends on.
type Store interface {
	configload.FileFetcher
	access.MembershipChecker
	QueryReports(ctx context.Context) ([]report.Report, error)
	FieldChoices(ctx context.Context, fieldName string) ([]string, error)
}

// DataSource holds one dashboard instance's in-memory view of the store:
// configuration, the session user's capability, the status choice set, and
// the report snapshot. All state lives on the instance — no package-level
// globals — so concurrent instances (one per session user) don't share.
type DataSource struct {
	store      Store
	configPath string
	userID     int

	mu            sync.RWMutex
	state         State
	initErr       error
	cfg           configload.Configuration
	capability    report.Capability
	statusChoices []string
	snapshot      []report.Report

	// flight coalesces concurrent Init and Load calls: a second caller
	// joins the in-flight operation and receives its result instead of
	// racing a duplicate fetch sequence against it.
	flight singleflight.Group
}

// New creates a data source for one session user.
// PRE: store is non-nil; userID identifies the session user
// POST: Returns an uninitialized data source; call Init before reading
// capability, choices, or snapshot
func New(store Store, configPath string, userID int) *DataSource {
	return &DataSource{
		store:      store,
		configPath: configPath,
		userID:     userID,
		state:      StateUninitialized,
	}
}

// Init runs the full initialization sequence. A failure in any step aborts
// the chain, transitions to Failed, and is returned to the caller; no step
// is retried. Calling Init again fully restarts the sequence; calls made
// while one is in flight join it.
// PRE: none
// POST: On success state is Ready and all accessors are valid; on failure
// state is Failed and the snapshot keeps its prior value
func (ds *DataSource) Init(ctx context.Context) error {
	_, err, _ := ds.flight.Do("init", func() (any, error) {
		return nil, ds.init(ctx)
	})
	return err
}

func (ds *DataSource) init(ctx context.Context) error {
	ds.setState(StateLoadingConfig)
	cfg := configload.Load(ctx, ds.store, ds.configPath)
	ds.mu.Lock()
	ds.cfg = cfg
	ds.mu.Unlock()

	ds.setState(StateLoadingAccess)
	capability := access.Resolve(ctx, cfg, ds.userID, ds.store)
	ds.mu.Lock()
	ds.capability = capability
	ds.mu.Unlock()

	ds.setState(StateLoadingMetadata)
	choices, err := ds.store.FieldChoices(ctx, report.FieldStatus)
	if err != nil {
		return ds.fail(fmt.Errorf("load status choices: %w", err))
	}
	ds.mu.Lock()
	ds.statusChoices = choices
	ds.mu.Unlock()

	ds.setState(StateLoadingRecords)
	if _, err := ds.Load(ctx); err != nil {
		return ds.fail(err)
	}

	ds.setState(StateReady)
	slog.Info("datasource_event", "event", "init_complete", "user_id", ds.userID,
		"capability", capability.String(), "records", len(ds.Snapshot()))
	return nil
}

// Load fetches the full record set and replaces the snapshot wholesale.
// Consumers observe either the old snapshot or the new one, never a mix.
// Concurrent Load calls coalesce into one fetch.
// PRE: none (usable during Init and standalone for post-mutation refreshes)
// POST: On success the snapshot is the freshly fetched set; on failure the
// prior snapshot is untouched
func (ds *DataSource) Load(ctx context.Context) ([]report.Report, error) {
	v, err, _ := ds.flight.Do("load", func() (any, error) {
		items, err := ds.store.QueryReports(ctx)
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		ds.mu.Lock()
		ds.snapshot = items
		ds.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]report.Report), nil
}

// State returns the current initialization state.
func (ds *DataSource) State() State {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.state
}

// Err returns the error that moved the data source to Failed, if any.
func (ds *DataSource) Err() error {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.initErr
}

// Configuration returns the loaded site configuration. Valid once Init has
// passed the config step.
func (ds *DataSource) Configuration() configload.Configuration {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.cfg
}

// Capability returns the session user's resolved capability. Only
// meaningful after Init resolves.
func (ds *DataSource) Capability() report.Capability {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.capability
}

// StatusChoices returns the status field's choice set in schema order.
// Treated as immutable for the session once loaded.
func (ds *DataSource) StatusChoices() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.statusChoices
}

// Snapshot returns the currently loaded record set, or nil before the first
// successful load. The returned slice is replaced wholesale on reload and
// must not be mutated.
func (ds *DataSource) Snapshot() []report.Report {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.snapshot
}

func (ds *DataSource) setState(s State) {
	ds.mu.Lock()
	ds.state = s
	ds.initErr = nil
	ds.mu.Unlock()
}

func (ds *DataSource) fail(err error) error {
	ds.mu.Lock()
	ds.state = StateFailed
	ds.initErr = err
	ds.mu.Unlock()
	slog.Error("datasource_event", "event", "init_failed", "user_id", ds.userID, "error", err)
	return err
}
