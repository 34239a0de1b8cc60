package api

import (
	"time"

	"github.com/samijaber1/sitepulse/internal/storage"
)

// HealthResponse represents a liveness check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents a readiness check response
type ReadyResponse struct {
	Ready   bool     `json:"ready"`
	Version uint64   `json:"version"`
	Reasons []string `json:"reasons"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RefreshListResponse represents a page of the refresh audit log
type RefreshListResponse struct {
	Records []RefreshRecordResponse `json:"records"`
	Total   int                     `json:"total"`
}

// RefreshRecordResponse represents one audited refresh attempt
type RefreshRecordResponse struct {
	ID           string    `json:"refresh_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   int64     `json:"duration_ms"`
	Sources      int       `json:"sources"`
	RowsLoaded   int       `json:"rows_loaded"`
	RowsRejected int       `json:"rows_rejected"`
	Sites        int       `json:"sites"`
	Warnings     []string  `json:"warnings"`
	Error        string    `json:"error,omitempty"`
}

func newRefreshRecordResponse(record storage.RefreshRecord) RefreshRecordResponse {
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return RefreshRecordResponse{
		ID:           record.ID,
		Status:       string(record.Status),
		StartedAt:    record.StartedAt,
		FinishedAt:   record.FinishedAt,
		DurationMS:   record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
		Sources:      record.Sources,
		RowsLoaded:   record.RowsLoaded,
		RowsRejected: record.RowsRejected,
		Sites:        record.Sites,
		Warnings:     warnings,
		Error:        record.Error,
	}
}
