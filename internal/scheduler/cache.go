package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
)

// Snapshot is one fully derived and aggregated dataset. A published
// snapshot is never mutated; readers may hold it across refreshes.
type Snapshot struct {
	Version   uint64
	RefreshID string
	LoadedAt  time.Time

	Sites     []progress.SiteRecord
	Global    rollup.Summary
	Packages  []rollup.PackageSummary
	Districts []rollup.DistrictSummary

	Sources      []string
	Warnings     []string
	RowsLoaded   int
	RowsRejected int
	TaskCount    int
}

// IsStale returns true if the snapshot is older than ttl
func (s *Snapshot) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LoadedAt) > ttl
}

// Find returns the site with the exact key
func (s *Snapshot) Find(key progress.SiteKey) (progress.SiteRecord, bool) {
	for _, site := range s.Sites {
		if site.Key() == key {
			return site, true
		}
	}
	return progress.SiteRecord{}, false
}

// SnapshotCache holds the live snapshot behind an atomic reference
type SnapshotCache struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Load returns the live snapshot, or nil before the first successful refresh
func (c *SnapshotCache) Load() *Snapshot {
	return c.current.Load()
}

// Publish replaces the live snapshot
func (c *SnapshotCache) Publish(snapshot *Snapshot) {
	c.current.Store(snapshot)
}

// build derives rollups for sites and assembles a snapshot
func build(sites []progress.SiteRecord) *Snapshot {
	snapshot := &Snapshot{
		Sites:     sites,
		Global:    rollup.Summarize(sites),
		Packages:  rollup.ByPackage(sites),
		Districts: rollup.ByDistrict(sites),
	}
	snapshot.TaskCount = snapshot.Global.TotalTasks
	return snapshot
}
