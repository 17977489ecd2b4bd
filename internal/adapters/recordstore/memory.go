package recordstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"obsdash/internal/domain/report"
)

// MemoryClient is an in-memory Client used by tests and as a seedable stand-in
// when no remote store is reachable. Failure injection knobs let tests force
// each operation down its error path.
type MemoryClient struct {
	mu      sync.Mutex
	nextID  int
	reports map[int]report.Report
	choices map[string][]string
	groups  map[string][]int // group name -> member user ids
	owners  []int            // default owner group member ids
	users   map[int]report.UserRef
	files   map[string][]byte
	sent    []Message

	// Error injection: when set, the matching operation fails with it.
	QueryErr  error
	CreateErr error
	UpdateErr error
	DeleteErr error
	FieldErr  error
	MailErr   error

	// Call counters for interaction tests.
	QueryCalls  int
	DeleteCalls []int
	GroupProbes []string // "byname:<group>" or "owners"
}

// NewMemoryClient creates an empty in-memory store client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		nextID:  1,
		reports: make(map[int]report.Report),
		choices: make(map[string][]string),
		groups:  make(map[string][]int),
		users:   make(map[int]report.UserRef),
		files:   make(map[string][]byte),
	}
}

// SeedReport inserts a report, assigning an id if unset.
func (m *MemoryClient) SeedReport(r report.Report) report.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID
	}
	if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	m.reports[r.ID] = r
	return r
}

// SetChoices sets the choice set for a field.
func (m *MemoryClient) SetChoices(field string, choices []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choices[field] = choices
}

// SetGroup sets the membership of a named group.
func (m *MemoryClient) SetGroup(name string, userIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[name] = userIDs
}

// SetOwners sets the default owner group membership.
func (m *MemoryClient) SetOwners(userIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners = userIDs
}

// SetUser registers a store user.
func (m *MemoryClient) SetUser(u report.UserRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// SetFile stores a site-relative file.
func (m *MemoryClient) SetFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// Sent returns a copy of the mail messages dispatched so far.
func (m *MemoryClient) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// QueryReports implements Client.
// PRE: none
// POST: Returns all seeded reports ordered by status then id
func (m *MemoryClient) QueryReports(_ context.Context) ([]report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	out := make([]report.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateReport implements Client.
// PRE: r has been validated
// POST: Report stored with a fresh id and Modified set
func (m *MemoryClient) CreateReport(_ context.Context, r report.Report) (report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return report.Report{}, m.CreateErr
	}
	r.ID = m.nextID
	m.nextID++
	r.Modified = time.Now()
	m.reports[r.ID] = r
	return r, nil
}

// UpdateReport implements Client.
// PRE: r.ID exists
// POST: Stored report replaced, Modified refreshed
func (m *MemoryClient) UpdateReport(_ context.Context, r report.Report) (report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return report.Report{}, m.UpdateErr
	}
	if _, ok := m.reports[r.ID]; !ok {
		return report.Report{}, ErrNotFound
	}
	r.Modified = time.Now()
	m.reports[r.ID] = r
	return r, nil
}

// DeleteReport implements Client.
// PRE: id > 0
// POST: Report removed; call recorded for interaction tests
func (m *MemoryClient) DeleteReport(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

// FieldChoices implements Client.
func (m *MemoryClient) FieldChoices(_ context.Context, fieldName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FieldErr != nil {
		return nil, m.FieldErr
	}
	choices, ok := m.choices[fieldName]
	if !ok {
		return nil, ErrNotFound
	}
	return choices, nil
}

// GroupMember implements Client.
func (m *MemoryClient) GroupMember(_ context.Context, groupName string, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupProbes = append(m.GroupProbes, "byname:"+groupName)
	members, ok := m.groups[groupName]
	if !ok {
		return ErrNotFound
	}
	for _, id := range members {
		if id == userID {
			return nil
		}
	}
	return ErrNotFound
}

// OwnerGroupMember implements Client.
func (m *MemoryClient) OwnerGroupMember(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupProbes = append(m.GroupProbes, "owners")
	for _, id := range m.owners {
		if id == userID {
			return nil
		}
	}
	return ErrNotFound
}

// UserByID implements Client.
func (m *MemoryClient) UserByID(_ context.Context, id int) (report.UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return report.UserRef{}, ErrNotFound
	}
	return u, nil
}

// FileContent implements Client.
func (m *MemoryClient) FileContent(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return content, nil
}

// SendMail implements Client.
// PRE: msg has recipients
// POST: Message recorded; MailErr returned if set
func (m *MemoryClient) SendMail(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MailErr != nil {
		return m.MailErr
	}
	m.sent = append(m.sent, msg)
	return nil
}
