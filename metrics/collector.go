// Package metrics provides per-run statistics collection.
//
// The Collector accumulates counters during a single migration run. It is a
// leaf package with no internal dependencies. Processed and total use atomic
// counters so a progress reader can observe them without locking; the keyed
// counters are guarded by a mutex and read via Snapshot.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable point-in-time view of run statistics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Total is the number of source records, known up front.
	Total int64 `json:"total"`
	// Processed counts source records consumed, one per record regardless
	// of outcome.
	Processed int64 `json:"processed"`
	// Skipped counts records bypassed as already migrated (duplicates or
	// checkpoint hits).
	Skipped int64 `json:"skipped"`
	// Exported counts exported records keyed by final type tag.
	Exported map[string]int64 `json:"exported"`
	// Dropped counts dropped branches keyed by the dropping step.
	Dropped map[string]int64 `json:"dropped"`

	// RunID is an informational dimension set at construction.
	RunID string `json:"run_id"`
}

// ExportedTotal sums the exported counter across types.
func (s Snapshot) ExportedTotal() int64 {
	var n int64
	for _, v := range s.Exported {
		n += v
	}
	return n
}

// DroppedTotal sums the dropped counter across steps.
func (s Snapshot) DroppedTotal() int64 {
	var n int64
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Collector accumulates statistics during a single run.
// All methods are nil-receiver safe so callers can run without metrics.
type Collector struct {
	total     atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64

	mu       sync.Mutex
	exported map[string]int64
	dropped  map[string]int64

	runID string
}

// NewCollector creates a Collector for a run over total source records.
func NewCollector(runID string, total int) *Collector {
	c := &Collector{
		exported: make(map[string]int64),
		dropped:  make(map[string]int64),
		runID:    runID,
	}
	c.total.Store(int64(total))
	return c
}

// IncProcessed records one consumed source record.
func (c *Collector) IncProcessed() {
	if c == nil {
		return
	}
	c.processed.Add(1)
}

// IncSkipped records a record bypassed as already migrated.
func (c *Collector) IncSkipped() {
	if c == nil {
		return
	}
	c.skipped.Add(1)
}

// IncExported records an exported record by its final type tag.
func (c *Collector) IncExported(typeName string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.exported[typeName]++
	c.mu.Unlock()
}

// IncDropped records a branch dropped by the named step.
func (c *Collector) IncDropped(stepName string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dropped[stepName]++
	c.mu.Unlock()
}

// Processed returns the processed counter without locking.
// Safe to call from a progress reader while the run is in flight.
func (c *Collector) Processed() int64 {
	if c == nil {
		return 0
	}
	return c.processed.Load()
}

// Total returns the current expected total without locking.
func (c *Collector) Total() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Snapshot returns an immutable copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Total:     c.total.Load(),
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Exported:  make(map[string]int64, len(c.exported)),
		Dropped:   make(map[string]int64, len(c.dropped)),
		RunID:     c.runID,
	}
	for k, v := range c.exported {
		snap.Exported[k] = v
	}
	for k, v := range c.dropped {
		snap.Dropped[k] = v
	}
	return snap
}
