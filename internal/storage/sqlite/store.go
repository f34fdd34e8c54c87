package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/OptiFolio/internal/models"
)

// Store keeps the history of successful optimization runs
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// RunRecord is one stored optimization run
type RunRecord struct {
	ID             string
	Model          string
	AsOf           string
	MaxWeight      float64
	MaxRisk        float64
	ExpectedReturn float64
	Volatility     float64
	SharpeRatio    float64
	MinVolatility  float64
	CompletedAt    time.Time
}

// RunWithMeta adds the row cursor and the allocations to a run
type RunWithMeta struct {
	RunRecord
	RowID       int64
	Allocations []models.Allocation
}

// Open opens the history at dbPath and brings its schema up to date
func Open(dbPath string) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores result and its allocations in one transaction
func (s *Store) RecordRun(ctx context.Context, result *models.OptimizationResult) error {
	if result == nil {
		return errors.New("record run: nil result")
	}
	if len(result.Tickers) != len(result.Weights) {
		return fmt.Errorf("record run: %d tickers for %d weights", len(result.Tickers), len(result.Weights))
	}

	completed := result.CompletedAt
	if completed.IsZero() {
		completed = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, model, as_of, max_weight, max_risk, expected_return, volatility, sharpe_ratio, min_volatility, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, string(result.Model), result.AsOf, result.MaxWeight, result.MaxRisk,
		result.ExpectedReturn, result.Volatility, result.SharpeRatio, result.MinVolatility, completed.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, ticker := range result.Tickers {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO allocations (run_id, seq, ticker, weight)
VALUES (?, ?, ?, ?)
`, id, i+1, ticker, result.Weights[i]); err != nil {
			return fmt.Errorf("insert allocation %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns pages runs newest first. cursor is the RowID of the last run
// seen, or 0 for the first page.
func (s *Store) ListRuns(ctx context.Context, cursor int64, limit int) ([]RunWithMeta, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, model, as_of, max_weight, max_risk, expected_return, volatility, sharpe_ratio, min_volatility, completed_at
FROM runs
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunWithMeta
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}

	for i := range runs {
		allocs, err := s.allocations(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Allocations = allocs
	}
	return runs, nil
}

// GetRun returns the run with id, or nil if there is none
func (s *Store) GetRun(ctx context.Context, id string) (*RunWithMeta, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT rowid, id, model, as_of, max_weight, max_risk, expected_return, volatility, sharpe_ratio, min_volatility, completed_at
FROM runs
WHERE id = ?
LIMIT 1
`, id)

	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Allocations, err = s.allocations(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunWithMeta, error) {
	var rec RunWithMeta
	err := row.Scan(&rec.RowID, &rec.ID, &rec.Model, &rec.AsOf, &rec.MaxWeight, &rec.MaxRisk,
		&rec.ExpectedReturn, &rec.Volatility, &rec.SharpeRatio, &rec.MinVolatility, &rec.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &rec, nil
}

func (s *Store) allocations(ctx context.Context, runID string) ([]models.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, weight
FROM allocations
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []models.Allocation
	for rows.Next() {
		var a models.Allocation
		if err := rows.Scan(&a.Ticker, &a.Weight); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
