package vitals

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/viewfinder/internal/tracing"
)

//go:embed schema.sql
var schema string

// Repository persists samples.
type Repository interface {
	Insert(ctx context.Context, samples []Sample) error
}

// Summary aggregates one metric over a window.
type Summary struct {
	Metric string  `json:"metric"`
	Count  int64   `json:"count"`
	P75    float64 `json:"p75"`
	Good   float64 `json:"good"` // share of good samples, 0..1
}

// PostgresRepository stores samples in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the web_vitals table and indexes if missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create web_vitals schema: %w", err)
	}
	return nil
}

// Insert bulk-loads samples with COPY in a single transaction.
func (r *PostgresRepository) Insert(ctx context.Context, samples []Sample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	ctx, end := tracing.StartDBSpan(ctx, "web_vitals", tracing.DBOperationInsert)
	defer func() { end(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin vitals insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("web_vitals",
		"report_id", "metric", "value", "delta", "rating", "navigation_type", "page", "user_agent", "received_at",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare vitals copy: %w", err)
	}
	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.Name, s.Value, s.Delta, s.Rating,
			s.NavigationType, s.Page, s.UserAgent, s.ReceivedAt,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy vitals sample: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush vitals copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close vitals copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vitals insert: %w", err)
	}
	return nil
}

// Summarize returns per-metric aggregates for samples received since.
func (r *PostgresRepository) Summarize(ctx context.Context, since time.Time) (_ []Summary, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "web_vitals", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := `
		SELECT metric,
		       COUNT(*),
		       percentile_cont(0.75) WITHIN GROUP (ORDER BY value),
		       AVG(CASE WHEN rating = 'good' THEN 1.0 ELSE 0.0 END)
		FROM web_vitals
		WHERE received_at >= $1
		GROUP BY metric
		ORDER BY metric
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize vitals: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Metric, &s.Count, &s.P75, &s.Good); err != nil {
			return nil, fmt.Errorf("failed to scan vitals summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vitals summary: %w", err)
	}
	return out, nil
}

// Prune deletes samples received before cutoff and returns how many were
// removed.
func (r *PostgresRepository) Prune(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "web_vitals", tracing.DBOperationDelete)
	defer func() { end(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM web_vitals WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vitals: %w", err)
	}
	return res.RowsAffected()
}
