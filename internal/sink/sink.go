// Package sink exports finished import batches to a storage backend for
// offline review and audit. Backends self-register by kind, so the binary
// selects one from config without linking every driver unconditionally.
package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"staffimport/internal/record"
)

// Config selects and parameterizes a sink backend.
//
// Edge cases:
//   - Kind must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
//   - Table defaults to "staff_import" when empty.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Sink receives a finished import batch.
type Sink interface {
	// WriteRecords creates the target table if needed and inserts one row
	// per record, tagged with the batch ID. Returns rows written.
	WriteRecords(ctx context.Context, batchID uuid.UUID, fields []string, records []*record.Record) (int64, error)

	// Close releases backend resources. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a sink backend under a kind (e.g. "postgres",
// "sqlite"). Call from an init() function in the backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("sink: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Sink using the registered backend factory.
//
// Errors:
//   - cfg.Kind empty or unregistered.
//   - Whatever the factory returns.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("sink: missing kind")
	}
	if cfg.Table == "" {
		cfg.Table = "staff_import"
	}

	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink: unsupported kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ColumnName converts a schema field name to its export column:
// camelCase to snake_case, dotted sub-fields joined with underscores
// ("bankAccount.accountNumber" becomes "bank_account_account_number").
func ColumnName(field string) string {
	var b strings.Builder
	b.Grow(len(field) + 4)
	for i, r := range field {
		switch {
		case r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && field[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Columns maps every field through ColumnName, preserving order.
func Columns(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = ColumnName(f)
	}
	return out
}
