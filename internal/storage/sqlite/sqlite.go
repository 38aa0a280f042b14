package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/storage"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
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
	started_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	report TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_domain_started ON reports (domain, started_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) SaveReport(ctx context.Context, report *model.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("sqlite: encode report: %w", err)
	}
	sum := report.Summarize()

	query := `
	INSERT INTO reports (
		id, source_url, domain, title, candidates, found, not_found, lookup_failed, best_position, started_at, duration_ms, report
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		report.ID,
		report.SourceURL,
		report.Domain,
		report.Metadata.Title,
		len(report.Candidates),
		sum.Found,
		sum.NotFound,
		sum.LookupFailed,
		sum.BestPosition,
		report.StartedAt.UTC(),
		report.Duration.Milliseconds(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert report: %w", err)
	}

	return nil
}

func (b *sqliteBackend) QueryReports(ctx context.Context, filter storage.Filter) ([]*model.Report, error) {
	query := `SELECT report FROM reports WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND source_url = ?`
		args = append(args, filter.URL)
	}
	if filter.Domain != "" {
		query += ` AND domain = lower(?)`
		args = append(args, filter.Domain)
	}
	if filter.Since != nil {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY started_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlite: scan report: %w", err)
		}

		var r model.Report
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("sqlite: decode report: %w", err)
		}
		reports = append(reports, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return reports, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
