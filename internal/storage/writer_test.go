package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"sqlsink/internal/column"
	"sqlsink/internal/projection"
)

type countingWriter struct{ cfg Config }

func (w *countingWriter) WriteBatch(_ context.Context, rows []projection.Row) (int64, error) {
	return int64(len(rows)), nil
}

// TestRegistry verifies registration, lookup and config validation.
func TestRegistry(t *testing.T) {
	b, err := column.NewBuilder()
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	cfg := Config{DB: &sql.DB{}, Schema: "dbo", Table: "Logs", Model: b.Build()}

	Register("test-counting", func(cfg Config) (Writer, error) { return &countingWriter{cfg: cfg}, nil })

	w, err := New("test-counting", cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	n, err := w.WriteBatch(context.Background(), make([]projection.Row, 3))
	if err != nil || n != 3 {
		t.Fatalf("WriteBatch() = %d, %v; want 3, nil", n, err)
	}

	if _, err := New("nope", cfg); err == nil {
		t.Fatalf("New(unknown) error = nil, want non-nil")
	}

	bad := cfg
	bad.Table = ""
	if _, err := New("test-counting", bad); err == nil {
		t.Fatalf("New(empty table) error = nil, want non-nil")
	}

	found := false
	for _, s := range Strategies() {
		if s == "test-counting" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Strategies() = %v, missing test-counting", Strategies())
	}
}

// TestWriteError checks message formatting and unwrapping.
func TestWriteError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := error(&WriteError{Op: "bulk finalize", Table: "[dbo].[Logs]", Rows: 5, Err: cause})
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(WriteError, cause) = false")
	}
	want := "write [dbo].[Logs] (5 rows) bulk finalize: connection reset"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
