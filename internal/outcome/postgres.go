package outcome

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the sink can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS step_records (
    id BIGSERIAL PRIMARY KEY,
    recorded_at TIMESTAMPTZ NOT NULL,
    run_id TEXT NOT NULL,
    step_name TEXT NOT NULL,
    action_type TEXT NOT NULL,
    selector TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL,
    context TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS price_observations (
    id BIGSERIAL PRIMARY KEY,
    observed_at TIMESTAMPTZ NOT NULL,
    dep_date TEXT NOT NULL,
    ret_date TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL
);`

const (
	insertStepSQL  = `INSERT INTO step_records (recorded_at, run_id, step_name, action_type, selector, success, error_message, duration_ms, context) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	insertPriceSQL = `INSERT INTO price_observations (observed_at, dep_date, ret_date, price) VALUES ($1, $2, $3, $4)`
	selectStepsSQL = `SELECT recorded_at, run_id, step_name, action_type, selector, success, error_message, duration_ms, context FROM step_records ORDER BY recorded_at ASC`
)

// PostgresSink stores records in PostgreSQL. The pool is owned by the caller.
type PostgresSink struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresSink verifies the connection and returns a sink.
func NewPostgresSink(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresSink, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSink{pool: pool, log: logger.Named("postgres")}, nil
}

// EnsureSchema creates the tables when they do not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create outcome schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteStep(ctx context.Context, rec StepRecord) error {
	_, err := s.pool.Exec(ctx, insertStepSQL,
		rec.Timestamp.UTC(), rec.RunID, rec.StepName, rec.ActionType, rec.Selector,
		rec.Success, rec.ErrorMessage, rec.DurationMS, rec.Context)
	if err != nil {
		return fmt.Errorf("failed to insert step %q: %w", rec.StepName, err)
	}
	return nil
}

func (s *PostgresSink) WritePrice(ctx context.Context, obs PriceObservation) error {
	_, err := s.pool.Exec(ctx, insertPriceSQL,
		obs.Timestamp.UTC(), obs.DepartureDate, obs.ReturnDate, obs.Price)
	if err != nil {
		return fmt.Errorf("failed to insert price observation: %w", err)
	}
	return nil
}

// Steps returns every stored step record, oldest first.
func (s *PostgresSink) Steps(ctx context.Context) ([]StepRecord, error) {
	rows, err := s.pool.Query(ctx, selectStepsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query step records: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		if err := rows.Scan(&rec.Timestamp, &rec.RunID, &rec.StepName, &rec.ActionType,
			&rec.Selector, &rec.Success, &rec.ErrorMessage, &rec.DurationMS, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to scan step record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// Close is a no-op; the pool outlives the sink.
func (s *PostgresSink) Close() error { return nil }
