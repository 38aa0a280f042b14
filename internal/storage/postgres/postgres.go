package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	domain TEXT NOT NULL,
	title TEXT,
	candidates INTEGER NOT NULL,
	found INTEGER NOT NULL,
	not_found INTEGER NOT NULL,
	lookup_failed INTEGER NOT NULL,
	best_position INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	report JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_domain_started ON reports (domain, started_at DESC);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) SaveReport(ctx context.Context, report *model.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("postgres: encode report: %w", err)
	}
	sum := report.Summarize()

	query := `
	INSERT INTO reports (
		id, source_url, domain, title, candidates, found, not_found, lookup_failed, best_position, started_at, duration_ms, report
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = b.pool.Exec(ctx, query,
		report.ID,
		report.SourceURL,
		report.Domain,
		report.Metadata.Title,
		len(report.Candidates),
		sum.Found,
		sum.NotFound,
		sum.LookupFailed,
		sum.BestPosition,
		report.StartedAt,
		report.Duration.Milliseconds(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert report: %w", err)
	}

	return nil
}

func (b *postgresBackend) QueryReports(ctx context.Context, filter storage.Filter) ([]*model.Report, error) {
	query := `SELECT report FROM reports WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND source_url = $%d`, paramCount)
		args = append(args, filter.URL)
		paramCount++
	}
	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = lower($%d)`, paramCount)
		args = append(args, filter.Domain)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND started_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY started_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}

		var r model.Report
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("postgres: decode report: %w", err)
		}
		reports = append(reports, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return reports, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
