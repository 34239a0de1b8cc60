package sqlite

// Schema defines the SQLite database schema. Timestamps are stored as
// unix nanoseconds so ordering and uniqueness survive round trips.
const Schema = `
-- Trend points, one per successful refresh
CREATE TABLE IF NOT EXISTS trend_points (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	refresh_id TEXT NOT NULL,
	ts_unix_nano INTEGER NOT NULL UNIQUE,
	avg_progress REAL NOT NULL,
	avg_risk_score REAL NOT NULL,
	total_sites INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trend_points_ts ON trend_points(ts_unix_nano);

-- Refresh audit table
CREATE TABLE IF NOT EXISTS refreshes (
	id TEXT PRIMARY KEY,
	started_at_unix_nano INTEGER NOT NULL,
	finished_at_unix_nano INTEGER NOT NULL,
	status TEXT NOT NULL,
	sources INTEGER NOT NULL DEFAULT 0,
	rows_loaded INTEGER NOT NULL DEFAULT 0,
	rows_rejected INTEGER NOT NULL DEFAULT 0,
	sites INTEGER NOT NULL DEFAULT 0,
	warnings_json TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_refreshes_status ON refreshes(status);
CREATE INDEX IF NOT EXISTS idx_refreshes_started_at ON refreshes(started_at_unix_nano DESC);
`
