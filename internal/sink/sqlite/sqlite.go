// Package sqlite implements the export sink on modernc.org/sqlite (cgo-free).
// Useful for local review of an import batch without a server database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"staffimport/internal/record"
	"staffimport/internal/sink"
)

func init() {
	sink.Register("sqlite", New)
}

// Export implements sink.Sink for SQLite.
type Export struct {
	db    *sql.DB
	table string
}

// New opens (or creates) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Export{db: db, table: cfg.Table}, nil
}

func (e *Export) Close() { _ = e.db.Close() }

// WriteRecords creates the export table if needed and inserts the batch in
// one transaction. INSERT OR IGNORE on the (batch_id, row_index) primary key
// keeps re-exports idempotent, mirroring the Postgres backend.
func (e *Export) WriteRecords(ctx context.Context, batchID uuid.UUID, fields []string, records []*record.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	cols := sink.Columns(fields)

	if _, err := e.db.ExecContext(ctx, buildCreateSQL(e.table, cols)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", e.table, err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(e.table, cols))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var written int64
	for _, rec := range records {
		args := make([]any, 0, 2+len(fields))
		args = append(args, batchID.String(), rec.Row)
		for _, f := range fields {
			args = append(args, rec.Get(f))
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", rec.Row, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func buildCreateSQL(table string, cols []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(ident(table))
	b.WriteString(" (batch_id TEXT NOT NULL, row_index INTEGER NOT NULL")
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(ident(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(", PRIMARY KEY (batch_id, row_index))")
	return b.String()
}

func buildInsertSQL(table string, cols []string) string {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(ident(table))
	b.WriteString(" (batch_id, row_index")
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES (?, ?")
	for range cols {
		b.WriteString(", ?")
	}
	b.WriteString(")")
	return b.String()
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
