// Package storage provides SQLite-backed recording of computed index
// snapshots and threshold alerts. It is an append-only diagnostics
// log: the engine never reads it back, so a restart always begins
// from a clean in-memory state.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/arkodell/cpmi/internal/models"
)

// Storage wraps a SQLite database for snapshot and alert recording.
type Storage struct {
	db           *sql.DB
	maxSnapshots int
}

// SnapshotRow is one persisted index computation.
type SnapshotRow struct {
	ID             string
	Value          float64
	RawValue       float64
	Probability    float64
	Interpretation string
	Categories     map[string]models.CategoryBreakdown
	MarketCount    int
	CreatedAt      time.Time
}

// AlertRow is one persisted threshold alert.
type AlertRow struct {
	ID        string
	Value     float64
	Deviation float64
	Message   string
	CreatedAt time.Time
}

// New opens or creates the SQLite database at dbPath. An empty dbPath
// defaults to $TMPDIR/cpmi/data.db.
func New(maxSnapshots int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "cpmi", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxSnapshots: maxSnapshots}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id             TEXT PRIMARY KEY,
			value          REAL NOT NULL,
			raw_value      REAL NOT NULL,
			probability    REAL NOT NULL,
			interpretation TEXT NOT NULL,
			categories     TEXT NOT NULL DEFAULT '{}',
			market_count   INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			value      REAL NOT NULL,
			deviation  REAL NOT NULL,
			message    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot appends one computed snapshot and rotates the table
// down to maxSnapshots newest rows.
func (s *Storage) SaveSnapshot(snap *models.IndexSnapshot) error {
	categoriesJSON, err := json.Marshal(snap.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id := snap.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = tx.Exec(`
		INSERT INTO snapshots
			(id, value, raw_value, probability, interpretation, categories, market_count, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		id, snap.Value, snap.RawValue, snap.Probability, snap.Interpretation,
		string(categoriesJSON), len(snap.Markets), snap.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC LIMIT ?
		)`, s.maxSnapshots); err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}

	return tx.Commit()
}

// RecentSnapshots returns up to limit snapshots, newest first.
func (s *Storage) RecentSnapshots(limit int) ([]SnapshotRow, error) {
	rows, err := s.db.Query(`
		SELECT id, value, raw_value, probability, interpretation, categories, market_count, created_at
		FROM snapshots ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		var categoriesJSON string
		var createdAtNano int64
		if err := rows.Scan(
			&row.ID, &row.Value, &row.RawValue, &row.Probability, &row.Interpretation,
			&categoriesJSON, &row.MarketCount, &createdAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &row.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		row.CreatedAt = time.Unix(0, createdAtNano)
		out = append(out, row)
	}
	if out == nil {
		out = []SnapshotRow{}
	}
	return out, rows.Err()
}

// SaveAlert records one threshold alert.
func (s *Storage) SaveAlert(value, deviation float64, message string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, value, deviation, message, created_at)
		VALUES (?,?,?,?,?)`,
		uuid.New().String(), value, deviation, message, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Storage) RecentAlerts(limit int) ([]AlertRow, error) {
	rows, err := s.db.Query(`
		SELECT id, value, deviation, message, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRow
	for rows.Next() {
		var row AlertRow
		var createdAtNano int64
		if err := rows.Scan(&row.ID, &row.Value, &row.Deviation, &row.Message, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		row.CreatedAt = time.Unix(0, createdAtNano)
		out = append(out, row)
	}
	if out == nil {
		out = []AlertRow{}
	}
	return out, rows.Err()
}
