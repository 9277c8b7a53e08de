// Package history stores finished security reports for later review. It is
// hosting-environment persistence: the analysis core itself stays stateless
// and keeps working with history disabled.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qvkare/metaguard-snap/internal/config"
)

// ErrNotFound is returned when a report ID is unknown.
var ErrNotFound = errors.New("not found")

// Record is one stored analysis outcome. Report carries the full report as
// JSON; the other columns exist for listing and filtering.
type Record struct {
	ID           string
	To           string
	From         string
	Risk         string
	RiskScore    float64
	WarningCount int
	Report       []byte
	CreatedAt    time.Time
}

// Store persists analysis records.
type Store interface {
	SaveReport(ctx context.Context, rec *Record) error
	GetReport(ctx context.Context, id string) (*Record, error)
	ListReports(ctx context.Context, limit int) ([]Record, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// New creates a store from configuration.
func New(cfg config.HistoryConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown history storage type: %s", cfg.Type)
	}
}
