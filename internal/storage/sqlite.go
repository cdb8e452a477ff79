// Package storage persists analysis history in SQLite so past incident
// investigations can be reviewed and reported on.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Storage handles database operations.
type Storage struct {
	db *sql.DB
}

// Analysis is one persisted analysis run.
type Analysis struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Prompt            string    `json:"prompt"`
	TotalLogs         int       `json:"total_logs"`
	FilteredLogsCount int       `json:"filtered_logs_count"`
	LogsAnalyzed      int       `json:"logs_analyzed"`
	Analysis          string    `json:"analysis"`
	EmbeddingCostUSD  float64   `json:"embedding_cost_usd"`
	LLMCostUSD        float64   `json:"llm_cost_usd"`
	TotalCostUSD      float64   `json:"total_cost_usd"`
	DurationSeconds   float64   `json:"duration_seconds"`
}

// Database configuration constants.
const (
	// busyTimeoutMs is how long SQLite waits when the database is locked.
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1).
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep.
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused.
	connMaxLifetime = 30 * time.Minute
)

// currentSchemaVersion is the latest schema version. Increment when adding
// migrations.
const currentSchemaVersion = 1

// New creates a storage instance backed by the SQLite file at dbPath.
func New(dbPath string) (*Storage, error) {
	// 0700: the history may contain log fragments, keep it owner-only.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The busy timeout prevents "database is locked" errors under
	// concurrent API requests.
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set).
func (s *Storage) getSchemaVersion() int {
	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0
	}
	return version
}

// setSchemaVersion updates the schema version.
func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

// migrateSchema runs migrations from currentVersion to latest.
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}

// migrateV1 creates the analyses table.
func (s *Storage) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		prompt TEXT NOT NULL,
		total_logs INTEGER NOT NULL DEFAULT 0,
		filtered_logs_count INTEGER NOT NULL DEFAULT 0,
		logs_analyzed INTEGER NOT NULL DEFAULT 0,
		analysis TEXT NOT NULL,
		embedding_cost_usd REAL NOT NULL DEFAULT 0.0,
		llm_cost_usd REAL NOT NULL DEFAULT 0.0,
		total_cost_usd REAL NOT NULL DEFAULT 0.0,
		duration_seconds REAL NOT NULL DEFAULT 0.0
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAnalysis saves one analysis run and sets its ID.
func (s *Storage) SaveAnalysis(a *Analysis) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	query := `
		INSERT INTO analyses (
			timestamp, prompt, total_logs, filtered_logs_count, logs_analyzed,
			analysis, embedding_cost_usd, llm_cost_usd, total_cost_usd,
			duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		a.Timestamp.Format(time.RFC3339),
		a.Prompt,
		a.TotalLogs,
		a.FilteredLogsCount,
		a.LogsAnalyzed,
		a.Analysis,
		a.EmbeddingCostUSD,
		a.LLMCostUSD,
		a.TotalCostUSD,
		a.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// GetRecentAnalyses retrieves up to limit analyses from the last N days,
// newest first.
func (s *Storage) GetRecentAnalyses(days, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	rows, err := s.db.Query(`
		SELECT id, timestamp, prompt, total_logs, filtered_logs_count,
		       logs_analyzed, analysis, embedding_cost_usd, llm_cost_usd,
		       total_cost_usd, duration_seconds
		FROM analyses
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return analyses, nil
}

// TotalCostSince sums the reported cost of all analyses in the last N days.
func (s *Storage) TotalCostSince(days int) (float64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	var total sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT SUM(total_cost_usd) FROM analyses WHERE timestamp >= ?
	`, cutoff).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum costs: %w", err)
	}
	return total.Float64, nil
}

// CleanupOldAnalyses deletes analyses older than N days and returns how
// many rows were removed.
func (s *Storage) CleanupOldAnalyses(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	result, err := s.db.Exec(`DELETE FROM analyses WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old analyses: %w", err)
	}

	return result.RowsAffected()
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func scanAnalysis(rows *sql.Rows) (*Analysis, error) {
	a := &Analysis{}
	var timestamp string

	if err := rows.Scan(
		&a.ID,
		&timestamp,
		&a.Prompt,
		&a.TotalLogs,
		&a.FilteredLogsCount,
		&a.LogsAnalyzed,
		&a.Analysis,
		&a.EmbeddingCostUSD,
		&a.LLMCostUSD,
		&a.TotalCostUSD,
		&a.DurationSeconds,
	); err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
	}
	a.Timestamp = parsed

	return a, nil
}
