package storage

import (
	"errors"
	"time"
)

// ErrNonMonotonic is returned when a trend point is not strictly after
// the last stored point
var ErrNonMonotonic = errors.New("trend point timestamp must be after the last point")

// TrendStorage is the append-only store of trend points
type TrendStorage interface {
	// AppendTrendPoint adds a point. Its timestamp must be strictly after
	// the last stored point, otherwise ErrNonMonotonic is returned.
	AppendTrendPoint(point TrendPoint) error

	// LastTrendPoint returns the most recent point, or nil if there is none
	LastTrendPoint() (*TrendPoint, error)

	// TrendPoints returns every point in ascending timestamp order
	TrendPoints() ([]TrendPoint, error)
}

// RefreshAuditStorage records every refresh attempt
type RefreshAuditStorage interface {
	// RecordRefresh persists one refresh attempt
	RecordRefresh(record RefreshRecord) error

	// QueryRefreshes retrieves refresh records, newest first
	QueryRefreshes(filter RefreshFilter) ([]RefreshRecord, error)
}

// Storage combines trend and audit persistence
type Storage interface {
	TrendStorage
	RefreshAuditStorage

	// Close closes the storage connection
	Close() error
}

// TrendPoint is the global summary recorded after one successful refresh
type TrendPoint struct {
	RefreshID    string    `json:"refresh_id"`
	Timestamp    time.Time `json:"timestamp"`
	AvgProgress  float64   `json:"avg_progress"`
	AvgRiskScore float64   `json:"avg_risk_score"`
	TotalSites   int       `json:"total_sites"`
}

// RefreshStatus is the outcome of a refresh attempt
type RefreshStatus string

const (
	RefreshSucceeded RefreshStatus = "success"
	RefreshFailed    RefreshStatus = "failed"
)

// RefreshRecord is one audited refresh attempt
type RefreshRecord struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Status       RefreshStatus `json:"status"`
	Sources      int           `json:"sources"`
	RowsLoaded   int           `json:"rows_loaded"`
	RowsRejected int           `json:"rows_rejected"`
	Sites        int           `json:"sites"`
	Warnings     []string      `json:"warnings"`
	Error        string        `json:"error,omitempty"`
}

// RefreshFilter defines filtering options for refresh audit queries
type RefreshFilter struct {
	Status    RefreshStatus
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// DefaultRefreshLimit applies when a filter sets no limit
const DefaultRefreshLimit = 100

// Matches reports whether a record passes the filter's predicates.
// Limit and Offset are applied by the caller.
func (f RefreshFilter) Matches(r RefreshRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.StartTime != nil && r.StartedAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && r.StartedAt.After(*f.EndTime) {
		return false
	}
	return true
}
