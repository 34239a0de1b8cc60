package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/samijaber1/sitepulse/internal/progress"
)

func testSites(names ...string) []progress.SiteRecord {
	sites := make([]progress.SiteRecord, 0, len(names))
	for _, name := range names {
		sites = append(sites, progress.SiteRecord{
			PackageName: "Package-1",
			District:    "Swat",
			SiteName:    name,
			Status:      progress.SiteActive,
			DelayBucket: progress.BucketOnTrack,
		})
	}
	return sites
}

func TestSnapshotCache_Basics(t *testing.T) {
	cache := NewSnapshotCache()

	// Initially empty
	if cache.Load() != nil {
		t.Fatal("expected empty cache")
	}

	first := build(testSites("A", "B"))
	first.Version = 1
	cache.Publish(first)

	if got := cache.Load(); got != first {
		t.Fatalf("expected published snapshot, got %+v", got)
	}
	if first.Global.TotalSites != 2 || len(first.Packages) != 1 {
		t.Errorf("unexpected rollups: %+v", first.Global)
	}

	second := build(testSites("C"))
	second.Version = 2
	cache.Publish(second)

	if cache.Load().Version != 2 {
		t.Errorf("expected version 2, got %d", cache.Load().Version)
	}
	// A reader holding the old snapshot still sees it intact
	if first.Global.TotalSites != 2 || len(first.Sites) != 2 {
		t.Error("old snapshot changed after swap")
	}
}

func TestSnapshot_Find(t *testing.T) {
	snapshot := build(testSites("A", "B"))

	site, ok := snapshot.Find(progress.SiteKey{Package: "Package-1", District: "Swat", Site: "B"})
	if !ok || site.SiteName != "B" {
		t.Errorf("expected to find B, got %+v", site)
	}

	if _, ok := snapshot.Find(progress.SiteKey{Package: "Package-1", District: "Dir", Site: "B"}); ok {
		t.Error("expected no match for wrong district")
	}
}

func TestSnapshot_IsStale(t *testing.T) {
	now := time.Now()
	snapshot := &Snapshot{LoadedAt: now.Add(-2 * time.Hour)}

	if !snapshot.IsStale(now, time.Hour) {
		t.Error("expected stale snapshot")
	}
	if snapshot.IsStale(now, 3*time.Hour) {
		t.Error("expected fresh snapshot")
	}
}

func TestSnapshotCache_ConcurrentAccess(t *testing.T) {
	cache := NewSnapshotCache()
	var wg sync.WaitGroup

	// Concurrent publishers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(version uint64) {
			defer wg.Done()
			snapshot := build(testSites("A", "B", "C"))
			snapshot.Version = version
			cache.Publish(snapshot)
		}(uint64(i + 1))
	}

	// Concurrent readers never see a torn snapshot
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if snapshot := cache.Load(); snapshot != nil {
				if snapshot.Global.TotalSites != len(snapshot.Sites) {
					t.Errorf("torn snapshot: %d sites, summary %d", len(snapshot.Sites), snapshot.Global.TotalSites)
				}
			}
		}()
	}

	wg.Wait()

	if cache.Load() == nil {
		t.Error("expected a snapshot after concurrent publishes")
	}
}
