package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is RFC3339 with a fixed-width 9-digit fraction. created_at
// is a TEXT column ordered lexicographically, so the fraction must not drop
// trailing zeros the way RFC3339Nano does.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		to_address TEXT,
		from_address TEXT,
		risk TEXT NOT NULL,
		risk_score REAL NOT NULL,
		warning_count INTEGER NOT NULL,
		report TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_to_address ON reports(to_address);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SaveReport stores one analysis record.
func (s *SQLiteStore) SaveReport(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, to_address, from_address, risk, risk_score, warning_count, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.To, rec.From, rec.Risk, rec.RiskScore, rec.WarningCount,
		string(rec.Report), rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport returns one record by ID.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, to_address, from_address, risk, risk_score, warning_count, report, created_at
		FROM reports WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return rec, nil
}

// ListReports returns the most recent records, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, to_address, from_address, risk, risk_score, warning_count, report, created_at
		FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec       Record
		report    string
		createdAt string
	)
	if err := s.Scan(&rec.ID, &rec.To, &rec.From, &rec.Risk, &rec.RiskScore,
		&rec.WarningCount, &report, &createdAt); err != nil {
		return nil, err
	}
	rec.Report = []byte(report)

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}
