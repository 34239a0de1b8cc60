package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samijaber1/sitepulse/internal/storage"
)

// Store implements storage.Storage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// AppendTrendPoint inserts a point after verifying it is strictly later
// than the last stored point
func (s *Store) AppendTrendPoint(point storage.TrendPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(ts_unix_nano) FROM trend_points").Scan(&last); err != nil {
		return fmt.Errorf("failed to read last trend point: %w", err)
	}

	ts := point.Timestamp.UnixNano()
	if last.Valid && ts <= last.Int64 {
		return storage.ErrNonMonotonic
	}

	query := `
		INSERT INTO trend_points (refresh_id, ts_unix_nano, avg_progress, avg_risk_score, total_sites)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, point.RefreshID, ts, point.AvgProgress, point.AvgRiskScore, point.TotalSites); err != nil {
		return fmt.Errorf("failed to store trend point: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trend point: %w", err)
	}
	return nil
}

// LastTrendPoint retrieves the most recent trend point
func (s *Store) LastTrendPoint() (*storage.TrendPoint, error) {
	query := `
		SELECT refresh_id, ts_unix_nano, avg_progress, avg_risk_score, total_sites
		FROM trend_points
		ORDER BY ts_unix_nano DESC
		LIMIT 1
	`

	point, err := scanTrendPoint(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last trend point: %w", err)
	}
	return &point, nil
}

// TrendPoints retrieves every trend point in ascending timestamp order
func (s *Store) TrendPoints() ([]storage.TrendPoint, error) {
	query := `
		SELECT refresh_id, ts_unix_nano, avg_progress, avg_risk_score, total_sites
		FROM trend_points
		ORDER BY ts_unix_nano ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend points: %w", err)
	}
	defer rows.Close()

	points := []storage.TrendPoint{}
	for rows.Next() {
		point, err := scanTrendPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return points, nil
}

// RecordRefresh persists a refresh attempt
func (s *Store) RecordRefresh(record storage.RefreshRecord) error {
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO refreshes (
			id, started_at_unix_nano, finished_at_unix_nano, status, sources,
			rows_loaded, rows_rejected, sites, warnings_json, error
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		record.ID,
		record.StartedAt.UnixNano(),
		record.FinishedAt.UnixNano(),
		string(record.Status),
		record.Sources,
		record.RowsLoaded,
		record.RowsRejected,
		record.Sites,
		string(warningsJSON),
		record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh record: %w", err)
	}

	return nil
}

// QueryRefreshes retrieves refresh records with optional filtering
func (s *Store) QueryRefreshes(filter storage.RefreshFilter) ([]storage.RefreshRecord, error) {
	query := `
		SELECT id, started_at_unix_nano, finished_at_unix_nano, status, sources,
		       rows_loaded, rows_rejected, sites, warnings_json, error
		FROM refreshes
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	if filter.StartTime != nil {
		query += " AND started_at_unix_nano >= ?"
		args = append(args, filter.StartTime.UnixNano())
	}

	if filter.EndTime != nil {
		query += " AND started_at_unix_nano <= ?"
		args = append(args, filter.EndTime.UnixNano())
	}

	query += " ORDER BY started_at_unix_nano DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultRefreshLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh records: %w", err)
	}
	defer rows.Close()

	var records []storage.RefreshRecord
	for rows.Next() {
		var record storage.RefreshRecord
		var startedNs, finishedNs int64
		var status, warningsJSON string

		err := rows.Scan(
			&record.ID,
			&startedNs,
			&finishedNs,
			&status,
			&record.Sources,
			&record.RowsLoaded,
			&record.RowsRejected,
			&record.Sites,
			&warningsJSON,
			&record.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record.StartedAt = time.Unix(0, startedNs).UTC()
		record.FinishedAt = time.Unix(0, finishedNs).UTC()
		record.Status = storage.RefreshStatus(status)

		if err := json.Unmarshal([]byte(warningsJSON), &record.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrendPoint(row rowScanner) (storage.TrendPoint, error) {
	var point storage.TrendPoint
	var ts int64
	err := row.Scan(&point.RefreshID, &ts, &point.AvgProgress, &point.AvgRiskScore, &point.TotalSites)
	if err != nil {
		return point, err
	}
	point.Timestamp = time.Unix(0, ts).UTC()
	return point, nil
}
