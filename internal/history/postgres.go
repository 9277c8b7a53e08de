package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY,
		to_address TEXT,
		from_address TEXT,
		risk TEXT NOT NULL,
		risk_score DOUBLE PRECISION NOT NULL,
		warning_count INTEGER NOT NULL,
		report JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
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
func (s *PostgresStore) SaveReport(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, to_address, from_address, risk, risk_score, warning_count, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.To, rec.From, rec.Risk, rec.RiskScore, rec.WarningCount,
		rec.Report, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport returns one record by ID.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, to_address, from_address, risk, risk_score, warning_count, report, created_at
		FROM reports WHERE id = $1`, id)

	var rec Record
	err := row.Scan(&rec.ID, &rec.To, &rec.From, &rec.Risk, &rec.RiskScore,
		&rec.WarningCount, &rec.Report, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return &rec, nil
}

// ListReports returns the most recent records, newest first.
func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, to_address, from_address, risk, risk_score, warning_count, report, created_at
		FROM reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.To, &rec.From, &rec.Risk, &rec.RiskScore,
			&rec.WarningCount, &rec.Report, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
