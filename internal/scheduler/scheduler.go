package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/samijaber1/sitepulse/internal/derive"
	"github.com/samijaber1/sitepulse/internal/ingest"
	"github.com/samijaber1/sitepulse/internal/metrics"
	"github.com/samijaber1/sitepulse/internal/storage"
)

// ErrNoSnapshot is returned when no refresh has succeeded yet
var ErrNoSnapshot = errors.New("no snapshot loaded")

// trendBump separates a trend point from the previous one when the
// clock has not advanced
const trendBump = time.Millisecond

// Options configures a Scheduler
type Options struct {
	// Interval between periodic refreshes; zero disables the loop
	Interval time.Duration
	// LoadTimeout bounds the loader call of a single refresh
	LoadTimeout time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// RefreshResult reports the outcome of one refresh pipeline run
type RefreshResult struct {
	ID           string    `json:"refresh_id"`
	Status       string    `json:"status"`
	RowsLoaded   int       `json:"rows_loaded"`
	RowsRejected int       `json:"rows_rejected"`
	Sites        int       `json:"sites"`
	Version      uint64    `json:"version"`
	LoadedAt     time.Time `json:"cache_timestamp"`
	Warnings     []string  `json:"warnings"`
	Error        string    `json:"error,omitempty"`
	// Shared is true when this caller joined a refresh already in flight
	Shared bool `json:"shared"`
}

// Refresh status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Scheduler owns the live snapshot and runs refreshes, on demand and
// periodically. At most one refresh pipeline runs at a time.
type Scheduler struct {
	loader  ingest.Loader
	engine  *derive.Engine
	cache   *SnapshotCache
	opts    Options
	flight  singleflight.Group
	trends  storage.TrendStorage
	audit   storage.RefreshAuditStorage
	metrics *metrics.Collector

	cancel context.CancelFunc
	wg     sync.WaitGroup
	// inflight counts pipelines that have not yet delivered their result,
	// including ones whose callers stopped waiting
	inflight sync.WaitGroup
	mu       sync.RWMutex
	running  bool

	lastAttempt time.Time
	lastErr     error
}

// NewScheduler creates a new scheduler
func NewScheduler(loader ingest.Loader, engine *derive.Engine, trends storage.TrendStorage, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Scheduler{
		loader: loader,
		engine: engine,
		cache:  NewSnapshotCache(),
		opts:   opts,
		trends: trends,
	}
}

// SetAuditStorage sets the refresh audit backend (optional)
func (s *Scheduler) SetAuditStorage(audit storage.RefreshAuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// SetMetrics sets the metrics collector (optional)
func (s *Scheduler) SetMetrics(collector *metrics.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = collector
}

// Start begins periodic refreshes. The first refresh runs immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	if s.opts.Interval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("refresh interval must be positive, got %v", s.opts.Interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.refreshLoop(ctx)

	log.Printf("Started scheduler with refresh interval %v", s.opts.Interval)
	return nil
}

// Stop stops the scheduler and waits for the loop and any refresh
// pipeline it started to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping scheduler...")
	s.wg.Wait()
	s.inflight.Wait()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	// Errors are already logged and audited by the pipeline
	s.Refresh(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh reloads the source and publishes a new snapshot. Callers that
// arrive while a refresh is in flight wait for and share its result.
// On failure the live snapshot is left untouched. Cancelling ctx stops
// this caller waiting; it does not abort the shared pipeline, and Stop
// still waits for it.
func (s *Scheduler) Refresh(ctx context.Context) (*RefreshResult, error) {
	s.inflight.Add(1)
	ch := s.flight.DoChan("refresh", func() (interface{}, error) {
		return s.runPipeline()
	})

	select {
	case <-ctx.Done():
		go func() {
			<-ch
			s.inflight.Done()
		}()
		return nil, ctx.Err()
	case res := <-ch:
		s.inflight.Done()
		result := *res.Val.(*RefreshResult)
		result.Shared = res.Shared
		return &result, res.Err
	}
}

// runPipeline performs load, clean, derive and aggregate, then publishes
func (s *Scheduler) runPipeline() (*RefreshResult, error) {
	started := s.opts.Now()
	result := &RefreshResult{ID: uuid.NewString(), Status: StatusOK}

	snapshot, sources, err := s.buildSnapshot(started, result)
	elapsed := s.opts.Now().Sub(started)

	s.mu.RLock()
	audit, collector := s.audit, s.metrics
	s.mu.RUnlock()

	collector.ObserveRefresh(err == nil, elapsed)
	collector.ObserveRejectedRows(result.RowsRejected)

	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		if current := s.cache.Load(); current != nil {
			result.Version = current.Version
			result.LoadedAt = current.LoadedAt
		}
		s.recordAttempt(started, err)
		s.recordAudit(audit, result, started, sources, storage.RefreshFailed)
		log.Printf("Refresh %s failed after %v: %v", result.ID, elapsed.Round(time.Millisecond), err)
		return result, err
	}

	// Appended before publish so a failed append shows in the snapshot warnings
	if err := s.appendTrend(snapshot, collector); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Trend point not recorded: %v", err))
		snapshot.Warnings = result.Warnings
	}

	s.cache.Publish(snapshot)
	s.recordAttempt(started, nil)
	collector.ObserveSnapshot(len(snapshot.Sites), snapshot.LoadedAt)

	result.Version = snapshot.Version
	result.LoadedAt = snapshot.LoadedAt

	s.recordAudit(audit, result, started, sources, storage.RefreshSucceeded)

	log.Printf("Refresh %s: version=%d, rows=%d, rejected=%d, sites=%d",
		result.ID, snapshot.Version, result.RowsLoaded, result.RowsRejected, result.Sites)
	return result, nil
}

// buildSnapshot runs the pipeline up to, but not including, publication
func (s *Scheduler) buildSnapshot(started time.Time, result *RefreshResult) (*Snapshot, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.LoadTimeout)
	defer cancel()

	batch, err := s.loader.Load(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("load timed out after %v: %w", s.opts.LoadTimeout, err)
		}
		return nil, 0, fmt.Errorf("load failed: %w", err)
	}
	sources := len(batch.Succeeded) + len(batch.Failed)

	result.Warnings = append(result.Warnings, batch.Warnings...)

	tasks, rowWarnings := ingest.Clean(batch.Rows)
	for _, w := range rowWarnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	result.RowsLoaded = len(tasks)
	result.RowsRejected = len(batch.Rows) - len(tasks)

	if len(tasks) == 0 {
		return nil, sources, fmt.Errorf("%d raw rows, none valid: %w", len(batch.Rows), ingest.ErrNoRows)
	}

	sites := s.engine.Derive(tasks, started)
	snapshot := build(sites)
	snapshot.RefreshID = result.ID
	snapshot.LoadedAt = s.nextTimestamp(started)
	snapshot.Sources = batch.Succeeded
	snapshot.Warnings = result.Warnings
	snapshot.RowsLoaded = result.RowsLoaded
	snapshot.RowsRejected = result.RowsRejected

	snapshot.Version = 1
	if current := s.cache.Load(); current != nil {
		snapshot.Version = current.Version + 1
	}

	result.Sites = len(sites)
	return snapshot, sources, nil
}

// nextTimestamp returns now, or a bump past the last trend point when
// the clock has not advanced
func (s *Scheduler) nextTimestamp(now time.Time) time.Time {
	floor := time.Time{}
	if current := s.cache.Load(); current != nil {
		floor = current.LoadedAt
	}
	if s.trends != nil {
		last, err := s.trends.LastTrendPoint()
		if err != nil {
			log.Printf("Warning: failed to read last trend point: %v", err)
		} else if last != nil && last.Timestamp.After(floor) {
			floor = last.Timestamp
		}
	}
	if !floor.IsZero() && !now.After(floor) {
		return floor.Add(trendBump)
	}
	return now
}

func (s *Scheduler) appendTrend(snapshot *Snapshot, collector *metrics.Collector) error {
	if s.trends == nil {
		return nil
	}
	point := storage.TrendPoint{
		RefreshID:    snapshot.RefreshID,
		Timestamp:    snapshot.LoadedAt,
		AvgProgress:  snapshot.Global.AvgProgress,
		AvgRiskScore: snapshot.Global.AvgRiskScore,
		TotalSites:   snapshot.Global.TotalSites,
	}
	if err := s.trends.AppendTrendPoint(point); err != nil {
		log.Printf("Warning: failed to append trend point for refresh %s: %v", snapshot.RefreshID, err)
		return err
	}
	collector.ObserveTrendPoint()
	return nil
}

func (s *Scheduler) recordAttempt(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAttempt = at
	s.lastErr = err
}

func (s *Scheduler) recordAudit(audit storage.RefreshAuditStorage, result *RefreshResult, started time.Time, sources int, status storage.RefreshStatus) {
	if audit == nil {
		return
	}
	record := storage.RefreshRecord{
		ID:           result.ID,
		StartedAt:    started,
		FinishedAt:   s.opts.Now(),
		Status:       status,
		Sources:      sources,
		RowsLoaded:   result.RowsLoaded,
		RowsRejected: result.RowsRejected,
		Sites:        result.Sites,
		Warnings:     result.Warnings,
		Error:        result.Error,
	}
	if err := audit.RecordRefresh(record); err != nil {
		log.Printf("Warning: failed to record refresh %s: %v", result.ID, err)
	}
}

// Snapshot returns the live snapshot, or ErrNoSnapshot
func (s *Scheduler) Snapshot() (*Snapshot, error) {
	snapshot := s.cache.Load()
	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return snapshot, nil
}

// GetCache returns the snapshot cache
func (s *Scheduler) GetCache() *SnapshotCache {
	return s.cache
}

// GetTrendStorage returns the trend storage backend
func (s *Scheduler) GetTrendStorage() storage.TrendStorage {
	return s.trends
}

// GetAuditStorage returns the refresh audit backend
func (s *Scheduler) GetAuditStorage() storage.RefreshAuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// Health summarizes the cache and the last refresh attempt
type Health struct {
	Status         string     `json:"status"`
	Version        uint64     `json:"version"`
	CacheTimestamp *time.Time `json:"cache_timestamp"`
	Stale          bool       `json:"stale"`
	RowCounts      RowCounts  `json:"row_counts"`
	LastAttempt    *time.Time `json:"last_refresh_attempt"`
	LastError      string     `json:"last_error,omitempty"`
	Sources        []string   `json:"sources"`
	Warnings       []string   `json:"warnings"`
}

// RowCounts are the sizes of the live snapshot
type RowCounts struct {
	Rows     int `json:"rows"`
	Rejected int `json:"rejected"`
	Tasks    int `json:"tasks"`
	Sites    int `json:"sites"`
}

// Health status values
const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)

// Health reports on the live snapshot. Status is degraded when the last
// refresh failed or the snapshot is older than twice the interval.
func (s *Scheduler) Health() Health {
	s.mu.RLock()
	lastAttempt, lastErr := s.lastAttempt, s.lastErr
	s.mu.RUnlock()

	h := Health{Status: HealthUnavailable, Sources: []string{}, Warnings: []string{}}
	if !lastAttempt.IsZero() {
		h.LastAttempt = &lastAttempt
	}
	if lastErr != nil {
		h.LastError = lastErr.Error()
	}

	snapshot := s.cache.Load()
	if snapshot == nil {
		return h
	}

	loadedAt := snapshot.LoadedAt
	h.Version = snapshot.Version
	h.CacheTimestamp = &loadedAt
	h.RowCounts = RowCounts{
		Rows:     snapshot.RowsLoaded + snapshot.RowsRejected,
		Rejected: snapshot.RowsRejected,
		Tasks:    snapshot.TaskCount,
		Sites:    len(snapshot.Sites),
	}
	if snapshot.Sources != nil {
		h.Sources = snapshot.Sources
	}
	if snapshot.Warnings != nil {
		h.Warnings = snapshot.Warnings
	}
	if s.opts.Interval > 0 {
		h.Stale = snapshot.IsStale(s.opts.Now(), 2*s.opts.Interval)
	}

	h.Status = HealthOK
	if lastErr != nil || h.Stale {
		h.Status = HealthDegraded
	}
	return h
}
