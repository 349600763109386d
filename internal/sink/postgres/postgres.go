// Package postgres implements the export sink on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffimport/internal/record"
	"staffimport/internal/sink"
)

func init() {
	sink.Register("postgres", New)
}

// Export implements sink.Sink for Postgres.
type Export struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a Postgres-backed export sink.
func New(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Export{pool: pool, table: cfg.Table}, nil
}

// Close closes the connection pool.
func (e *Export) Close() { e.pool.Close() }

// WriteRecords creates the export table if needed and bulk-inserts the
// batch. The insert carries ON CONFLICT DO NOTHING on (batch_id, row_index)
// so re-exporting the same batch is idempotent.
func (e *Export) WriteRecords(ctx context.Context, batchID uuid.UUID, fields []string, records []*record.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	cols := sink.Columns(fields)

	if _, err := e.pool.Exec(ctx, buildCreateSQL(e.table, cols)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", e.table, err)
	}

	sql, args := buildInsertSQL(e.table, cols, fields, batchID, records)
	cmd, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert batch %s: %w", batchID, err)
	}
	return cmd.RowsAffected(), nil
}

// buildCreateSQL is pure so DDL shape is unit-testable without a database.
func buildCreateSQL(table string, cols []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	b.WriteString("batch_id UUID NOT NULL, row_index INTEGER NOT NULL")
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(pgIdent(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(", PRIMARY KEY (batch_id, row_index))")
	return b.String()
}

// buildInsertSQL constructs a single multi-row INSERT and its args.
func buildInsertSQL(table string, cols, fields []string, batchID uuid.UUID, records []*record.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (batch_id, row_index")
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	width := 2 + len(cols)
	args := make([]any, 0, len(records)*width)
	p := 1
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteString(")")

		args = append(args, batchID, rec.Row)
		for _, f := range fields {
			args = append(args, rec.Get(f))
		}
	}

	b.WriteString(" ON CONFLICT (batch_id, row_index) DO NOTHING")
	return b.String(), args
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
