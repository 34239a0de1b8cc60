package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/samijaber1/sitepulse/internal/storage"
)

func TestStore_AppendTrendPoint(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := store.AppendTrendPoint(storage.TrendPoint{Timestamp: base, TotalSites: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.AppendTrendPoint(storage.TrendPoint{Timestamp: base.Add(time.Hour), TotalSites: 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.AppendTrendPoint(storage.TrendPoint{Timestamp: base.Add(time.Hour)})
	if !errors.Is(err, storage.ErrNonMonotonic) {
		t.Errorf("expected ErrNonMonotonic for duplicate timestamp, got %v", err)
	}

	err = store.AppendTrendPoint(storage.TrendPoint{Timestamp: base})
	if !errors.Is(err, storage.ErrNonMonotonic) {
		t.Errorf("expected ErrNonMonotonic for earlier timestamp, got %v", err)
	}

	points, _ := store.TrendPoints()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[1].TotalSites != 4 {
		t.Errorf("expected last point to have 4 sites, got %d", points[1].TotalSites)
	}

	last, _ := store.LastTrendPoint()
	if last == nil || !last.Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected last point: %+v", last)
	}
}

func TestStore_TrendPointsReturnsCopy(t *testing.T) {
	store := NewStore()
	store.AppendTrendPoint(storage.TrendPoint{Timestamp: time.Now(), TotalSites: 1})

	points, _ := store.TrendPoints()
	points[0].TotalSites = 99

	again, _ := store.TrendPoints()
	if again[0].TotalSites != 1 {
		t.Error("stored point was mutated through returned slice")
	}
}

func TestStore_LastTrendPoint_Empty(t *testing.T) {
	last, err := NewStore().LastTrendPoint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil, got %+v", last)
	}
}

func TestStore_QueryRefreshes(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, status := range []storage.RefreshStatus{
		storage.RefreshSucceeded, storage.RefreshFailed, storage.RefreshSucceeded,
	} {
		store.RecordRefresh(storage.RefreshRecord{
			ID:        string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    status,
		})
	}

	all, err := store.QueryRefreshes(storage.RefreshFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Errorf("expected newest first, got %+v", all)
	}

	failed, _ := store.QueryRefreshes(storage.RefreshFilter{Status: storage.RefreshFailed})
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Errorf("expected only the failed refresh, got %+v", failed)
	}

	paged, _ := store.QueryRefreshes(storage.RefreshFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].ID != "b" {
		t.Errorf("unexpected page: %+v", paged)
	}

	pastEnd, err := store.QueryRefreshes(storage.RefreshFilter{Offset: 10})
	if err != nil || pastEnd == nil || len(pastEnd) != 0 {
		t.Errorf("expected empty non-nil page past the end, got %#v (err %v)", pastEnd, err)
	}

	since := base.Add(90 * time.Second)
	recent, _ := store.QueryRefreshes(storage.RefreshFilter{StartTime: &since})
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Errorf("unexpected time filter result: %+v", recent)
	}
}
