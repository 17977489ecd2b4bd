// Package perf is a fixed-size ring buffer of request timings. Writes are
// non-blocking; when full, the oldest entries are overwritten. Aggregation
// happens only on read.
package perf

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// Entry is a single timing record.
type Entry struct {
	Path       string
	StatusCode int
	DurationMs float64
	Timestamp  time.Time
}

// Collector stores timing entries in a ring buffer.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	filled  bool
	count   int64 // total entries ever written
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: size > 0 (non-positive sizes fall back to the default)
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// PRE: e is a valid Entry
// POST: Entry stored; if the buffer is full the oldest entry is overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	if c.pos == 0 {
		c.filled = true
	}
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the total number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// PathStat aggregates one path's timings.
type PathStat struct {
	Path  string
	Count int
	MaxMs float64
	AvgMs float64
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRequests int64
	P50Ms         float64
	P95Ms         float64
	SlowestPaths  []PathStat
}

// Stats aggregates the current ring contents.
// PRE: none
// POST: Returns percentiles over retained entries and per-path maxima,
// slowest paths first (at most 10)
func (c *Collector) Stats() Snapshot {
	c.mu.Lock()
	n := c.pos
	if c.filled {
		n = c.size
	}
	entries := make([]Entry, n)
	copy(entries, c.entries[:n])
	c.mu.Unlock()

	snap := Snapshot{TotalRequests: c.TotalRecorded()}
	if len(entries) == 0 {
		return snap
	}

	durations := make([]float64, len(entries))
	byPath := make(map[string]*PathStat)
	for i, e := range entries {
		durations[i] = e.DurationMs
		st, ok := byPath[e.Path]
		if !ok {
			st = &PathStat{Path: e.Path}
			byPath[e.Path] = st
		}
		st.Count++
		st.AvgMs += e.DurationMs
		if e.DurationMs > st.MaxMs {
			st.MaxMs = e.DurationMs
		}
	}
	sort.Float64s(durations)
	snap.P50Ms = percentile(durations, 0.50)
	snap.P95Ms = percentile(durations, 0.95)

	for _, st := range byPath {
		st.AvgMs /= float64(st.Count)
		snap.SlowestPaths = append(snap.SlowestPaths, *st)
	}
	sort.Slice(snap.SlowestPaths, func(i, j int) bool {
		return snap.SlowestPaths[i].MaxMs > snap.SlowestPaths[j].MaxMs
	})
	if len(snap.SlowestPaths) > 10 {
		snap.SlowestPaths = snap.SlowestPaths[:10]
	}
	return snap
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
