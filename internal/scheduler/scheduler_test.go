package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samijaber1/sitepulse/internal/derive"
	"github.com/samijaber1/sitepulse/internal/ingest"
	"github.com/samijaber1/sitepulse/internal/metrics"
	"github.com/samijaber1/sitepulse/internal/storage"
	"github.com/samijaber1/sitepulse/internal/storage/memory"
)

func rawRow(site, progressPct string) ingest.RawRow {
	return ingest.RawRow{
		Source: "test",
		Line:   2,
		Fields: map[string]string{
			ingest.ColPackageName:   "Package-1",
			ingest.ColDistrict:      "Swat",
			ingest.ColSiteName:      site,
			ingest.ColTaskName:      "Roof",
			ingest.ColPlannedStart:  "01/01/2026",
			ingest.ColPlannedFinish: "01/03/2026",
			ingest.ColProgress:      progressPct,
		},
	}
}

func staticLoader(rows ...ingest.RawRow) ingest.Loader {
	return ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		return &ingest.Batch{
			Rows:      rows,
			Succeeded: []string{"test"},
			Warnings:  []string{"Loaded 1/1 sources successfully"},
		}, nil
	})
}

// fixedClock returns the same instant on every call
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestScheduler(loader ingest.Loader, trends storage.TrendStorage, now func() time.Time) *Scheduler {
	return NewScheduler(loader, derive.NewEngine(derive.DefaultPolicy()), trends, Options{
		Interval:    time.Hour,
		LoadTimeout: time.Second,
		Now:         now,
	})
}

func TestScheduler_RefreshPublishesSnapshot(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(staticLoader(rawRow("A", "40"), rawRow("B", "abc")), store, fixedClock(now))
	sched.SetAuditStorage(store)

	if _, err := sched.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot before first refresh, got %v", err)
	}

	result, err := sched.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Status != StatusOK || result.RowsLoaded != 1 || result.RowsRejected != 1 || result.Sites != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.ID == "" {
		t.Error("expected refresh ID")
	}
	if len(result.Warnings) != 2 || result.Warnings[0] != "Loaded 1/1 sources successfully" {
		t.Errorf("expected source summary first then row warning, got %v", result.Warnings)
	}

	snapshot, err := sched.Snapshot()
	if err != nil {
		t.Fatalf("expected snapshot: %v", err)
	}
	if snapshot.Version != 1 || !snapshot.LoadedAt.Equal(now) {
		t.Errorf("unexpected snapshot header: version=%d loadedAt=%v", snapshot.Version, snapshot.LoadedAt)
	}
	if snapshot.Global.TotalSites != 1 || len(snapshot.Packages) != 1 || len(snapshot.Districts) != 1 {
		t.Errorf("unexpected rollups: %+v", snapshot.Global)
	}

	points, _ := store.TrendPoints()
	if len(points) != 1 || points[0].RefreshID != result.ID || points[0].AvgProgress != 40 {
		t.Errorf("unexpected trend points: %+v", points)
	}

	audits, _ := store.QueryRefreshes(storage.RefreshFilter{})
	if len(audits) != 1 || audits[0].Status != storage.RefreshSucceeded {
		t.Errorf("unexpected audit: %+v", audits)
	}
}

func TestScheduler_FailedRefreshKeepsSnapshot(t *testing.T) {
	store := memory.NewStore()
	var fail atomic.Bool
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		if fail.Load() {
			return nil, fmt.Errorf("source unreachable")
		}
		return &ingest.Batch{Rows: []ingest.RawRow{rawRow("A", "40")}}, nil
	})

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(loader, store, func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	sched.SetAuditStorage(store)

	if _, err := sched.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	before := sched.GetCache().Load()
	beforeCopy := *before

	fail.Store(true)
	result, err := sched.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if result.Status != StatusError || result.Version != before.Version {
		t.Errorf("unexpected failure result: %+v", result)
	}

	after := sched.GetCache().Load()
	if after != before {
		t.Error("failed refresh replaced the snapshot")
	}
	if !reflect.DeepEqual(beforeCopy, *after) {
		t.Error("failed refresh mutated the snapshot")
	}

	points, _ := store.TrendPoints()
	if len(points) != 1 {
		t.Errorf("failed refresh appended a trend point: %d points", len(points))
	}

	health := sched.Health()
	if health.Status != HealthDegraded || health.LastError == "" {
		t.Errorf("expected degraded health with error, got %+v", health)
	}

	failed, _ := store.QueryRefreshes(storage.RefreshFilter{Status: storage.RefreshFailed})
	if len(failed) != 1 {
		t.Errorf("expected 1 failed audit record, got %d", len(failed))
	}
}

func TestScheduler_AllRowsInvalid(t *testing.T) {
	sched := newTestScheduler(staticLoader(rawRow("A", "150")), memory.NewStore(), time.Now)

	_, err := sched.Refresh(context.Background())
	if !errors.Is(err, ingest.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if sched.GetCache().Load() != nil {
		t.Error("expected no snapshot to be published")
	}
	if sched.Health().Status != HealthUnavailable {
		t.Errorf("expected unavailable health, got %s", sched.Health().Status)
	}
}

func TestScheduler_LoadTimeout(t *testing.T) {
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	sched := NewScheduler(loader, derive.NewEngine(derive.DefaultPolicy()), nil, Options{
		LoadTimeout: 20 * time.Millisecond,
	})

	_, err := sched.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestScheduler_ConcurrentRefreshesShareOneRun(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		calls.Add(1)
		<-release
		return &ingest.Batch{Rows: []ingest.RawRow{rawRow("A", "10")}}, nil
	})
	sched := newTestScheduler(loader, memory.NewStore(), time.Now)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*RefreshResult, callers)
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			results[i], _ = sched.Refresh(context.Background())
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	// Give every caller time to join the flight before it completes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected loader to run once, ran %d times", got)
	}
	for i, r := range results {
		if r == nil || r.ID != results[0].ID {
			t.Errorf("caller %d did not share the in-flight result: %+v", i, r)
		}
	}
	if v := sched.GetCache().Load().Version; v != 1 {
		t.Errorf("expected a single published version, got %d", v)
	}
}

func TestScheduler_RefreshCallerCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		<-release
		return &ingest.Batch{Rows: []ingest.RawRow{rawRow("A", "10")}}, nil
	})
	sched := newTestScheduler(loader, nil, time.Now)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sched.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected caller deadline, got %v", err)
	}
}

func TestScheduler_TrendTimestampsStrictlyIncrease(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sched := newTestScheduler(staticLoader(rawRow("A", "10")), store, fixedClock(now))

	for i := 0; i < 3; i++ {
		if _, err := sched.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}

	points, _ := store.TrendPoints()
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			t.Errorf("point %d (%v) not after point %d (%v)", i, points[i].Timestamp, i-1, points[i-1].Timestamp)
		}
	}
	if snap := sched.GetCache().Load(); !snap.LoadedAt.Equal(points[2].Timestamp) || snap.Version != 3 {
		t.Errorf("snapshot does not match last trend point: %+v", snap.LoadedAt)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	var calls atomic.Int32
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		calls.Add(1)
		return &ingest.Batch{Rows: []ingest.RawRow{rawRow("A", "10")}}, nil
	})
	sched := NewScheduler(loader, derive.NewEngine(derive.DefaultPolicy()), memory.NewStore(), Options{
		Interval: 10 * time.Millisecond,
	})

	if err := sched.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := sched.Start(); err == nil {
		t.Error("expected error starting twice")
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sched.Stop()
	sched.Stop()

	if calls.Load() < 2 {
		t.Errorf("expected at least 2 periodic refreshes, got %d", calls.Load())
	}
	if h := sched.Health(); h.LastError != "" || h.Version < 2 {
		t.Errorf("unexpected health after periodic refreshes: %+v", h)
	}
}

func TestScheduler_StartRequiresInterval(t *testing.T) {
	sched := NewScheduler(staticLoader(), derive.NewEngine(derive.DefaultPolicy()), nil, Options{})
	if err := sched.Start(); err == nil {
		t.Error("expected error without interval")
	}
}

func TestScheduler_StopWaitsForRunningRefresh(t *testing.T) {
	var finished atomic.Bool
	loader := ingest.LoaderFunc(func(ctx context.Context) (*ingest.Batch, error) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		finished.Store(true)
		return &ingest.Batch{Rows: []ingest.RawRow{rawRow("A", "10")}}, nil
	})
	store := memory.NewStore()
	sched := NewScheduler(loader, derive.NewEngine(derive.DefaultPolicy()), store, Options{
		Interval:    time.Hour,
		LoadTimeout: 5 * time.Second,
	})
	sched.SetAuditStorage(store)

	if err := sched.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if !finished.Load() {
		t.Fatal("Stop returned while the first refresh was still loading")
	}
	points, _ := store.TrendPoints()
	audits, _ := store.QueryRefreshes(storage.RefreshFilter{})
	if len(points) != 1 || len(audits) != 1 {
		t.Fatalf("expected the refresh to be fully recorded before Stop returned, got %d points, %d audits",
			len(points), len(audits))
	}

	// Nothing may be written once Stop has returned
	time.Sleep(100 * time.Millisecond)
	pointsLater, _ := store.TrendPoints()
	auditsLater, _ := store.QueryRefreshes(storage.RefreshFilter{})
	if len(pointsLater) != len(points) || len(auditsLater) != len(audits) {
		t.Errorf("storage written after Stop: %d points, %d audits", len(pointsLater), len(auditsLater))
	}
}

// failingTrends rejects every append
type failingTrends struct{}

func (failingTrends) AppendTrendPoint(storage.TrendPoint) error {
	return errors.New("database is closed")
}

func (failingTrends) LastTrendPoint() (*storage.TrendPoint, error) { return nil, nil }

func (failingTrends) TrendPoints() ([]storage.TrendPoint, error) { return nil, nil }

func hasWarning(warnings []string, prefix string) bool {
	for _, w := range warnings {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func TestScheduler_TrendAppendFailureIsReported(t *testing.T) {
	audit := memory.NewStore()
	sched := newTestScheduler(staticLoader(rawRow("A", "10")), failingTrends{}, time.Now)
	sched.SetAuditStorage(audit)

	result, err := sched.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("expected ok status, got %s", result.Status)
	}

	const want = "Trend point not recorded: database is closed"
	if !hasWarning(result.Warnings, want) {
		t.Errorf("result warnings missing trend failure: %v", result.Warnings)
	}
	if !hasWarning(sched.Health().Warnings, want) {
		t.Errorf("health warnings missing trend failure: %v", sched.Health().Warnings)
	}
	records, _ := audit.QueryRefreshes(storage.RefreshFilter{})
	if len(records) != 1 || !hasWarning(records[0].Warnings, want) {
		t.Errorf("audit record missing trend failure: %+v", records)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestScheduler_RejectedRowsCountedOnFailedRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	sched := newTestScheduler(staticLoader(rawRow("A", "150"), rawRow("B", "-5")), nil, time.Now)
	sched.SetMetrics(metrics.New(reg))

	if _, err := sched.Refresh(context.Background()); !errors.Is(err, ingest.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if got := counterValue(t, reg, "sitepulse_rows_rejected_total"); got != 2 {
		t.Errorf("expected 2 rejected rows counted, got %v", got)
	}
}
