package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"staffimport/internal/record"
	"staffimport/internal/sink"
)

func TestWriteRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "export.db")

	s, err := New(ctx, sink.Config{Kind: "sqlite", DSN: dsn, Table: "staff_import"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	batch := uuid.New()
	fields := []string{"email", "firstName", "bankAccount.accountNumber"}
	recs := []*record.Record{
		{Row: 0, Values: map[string]string{"email": "a@x.com", "firstName": "Anna", "bankAccount.accountNumber": "123"}},
		{Row: 1, Values: map[string]string{"email": "b@x.com", "firstName": "Bo"}},
	}

	n, err := s.WriteRecords(ctx, batch, fields, recs)
	if err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}

	// Re-export of the same batch is idempotent.
	n, err = s.WriteRecords(ctx, batch, fields, recs)
	if err != nil {
		t.Fatalf("second WriteRecords: %v", err)
	}
	if n != 0 {
		t.Errorf("re-export wrote %d rows, want 0", n)
	}

	e := s.(*Export)
	var email, account string
	row := e.db.QueryRowContext(ctx,
		`SELECT email, bank_account_account_number FROM staff_import WHERE batch_id = ? AND row_index = 0`,
		batch.String())
	if err := row.Scan(&email, &account); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if email != "a@x.com" || account != "123" {
		t.Errorf("stored row = %q, %q", email, account)
	}
}

func TestWriteRecordsEmptyBatch(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, sink.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "e.db"), Table: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	n, err := s.WriteRecords(ctx, uuid.New(), []string{"email"}, nil)
	if err != nil || n != 0 {
		t.Errorf("empty batch: n=%d err=%v", n, err)
	}
}
