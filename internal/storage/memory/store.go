package memory

import (
	"sort"
	"sync"

	"github.com/samijaber1/sitepulse/internal/storage"
)

// Store implements storage.Storage in process memory. History is lost
// when the process exits.
type Store struct {
	mu        sync.RWMutex
	points    []storage.TrendPoint
	refreshes []storage.RefreshRecord
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{}
}

// AppendTrendPoint adds a point after the last one
func (s *Store) AppendTrendPoint(point storage.TrendPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.points); n > 0 && !point.Timestamp.After(s.points[n-1].Timestamp) {
		return storage.ErrNonMonotonic
	}
	s.points = append(s.points, point)
	return nil
}

// LastTrendPoint returns the most recent point
func (s *Store) LastTrendPoint() (*storage.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.points) == 0 {
		return nil, nil
	}
	last := s.points[len(s.points)-1]
	return &last, nil
}

// TrendPoints returns a copy of every point in ascending order
func (s *Store) TrendPoints() ([]storage.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.TrendPoint, len(s.points))
	copy(out, s.points)
	return out, nil
}

// RecordRefresh appends a refresh record
func (s *Store) RecordRefresh(record storage.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Warnings = append([]string(nil), record.Warnings...)
	s.refreshes = append(s.refreshes, record)
	return nil
}

// QueryRefreshes returns matching records, newest first
func (s *Store) QueryRefreshes(filter storage.RefreshFilter) ([]storage.RefreshRecord, error) {
	s.mu.RLock()
	matched := make([]storage.RefreshRecord, 0, len(s.refreshes))
	for _, r := range s.refreshes {
		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []storage.RefreshRecord{}, nil
		}
		matched = matched[filter.Offset:]
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultRefreshLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
