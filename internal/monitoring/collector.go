package monitoring

import (
	"time"

	"github.com/sells-group/gbfs-cli/internal/gbfs"
)

// SystemSource lists the systems to watch.
type SystemSource interface {
	All() []*gbfs.System
}

// SystemHealth is the state of one system at collection time.
type SystemHealth struct {
	Tag       string        `json:"tag"`
	Ready     bool          `json:"ready"`
	UpdatedAt time.Time     `json:"updated_at,omitzero"`
	Age       time.Duration `json:"age_ns"`
	Stations  int           `json:"stations"`
}

// MetricsSnapshot holds a point-in-time view of the served systems.
type MetricsSnapshot struct {
	Systems     []SystemHealth `json:"systems"`
	Total       int            `json:"total"`
	Ready       int            `json:"ready"`
	Uptime      time.Duration  `json:"uptime_ns"`
	CollectedAt time.Time      `json:"collected_at"`
}

// Collector gathers health from a SystemSource.
type Collector struct {
	source  SystemSource
	started time.Time
	now     func() time.Time
}

// NewCollector creates a collector. Uptime is measured from now.
func NewCollector(source SystemSource) *Collector {
	return &Collector{source: source, started: time.Now(), now: time.Now}
}

// Collect snapshots every system.
func (c *Collector) Collect() *MetricsSnapshot {
	now := c.now()
	snap := &MetricsSnapshot{
		Uptime:      now.Sub(c.started),
		CollectedAt: now.UTC(),
	}

	for _, s := range c.source.All() {
		stations, updatedAt, ready := s.Snapshot()
		h := SystemHealth{
			Tag:      s.Tag(),
			Ready:    ready,
			Stations: len(stations),
		}
		if ready {
			h.UpdatedAt = updatedAt
			h.Age = now.Sub(h.UpdatedAt)
			snap.Ready++
		}
		snap.Systems = append(snap.Systems, h)
	}
	snap.Total = len(snap.Systems)
	return snap
}
