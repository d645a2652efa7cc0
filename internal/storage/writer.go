// Package storage defines the storage-agnostic write contract for projected
// rows and a registry of write strategies.
//
// Backends register their strategies at init time (see the mssql package);
// callers select one by name without importing the backend directly.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sqlsink/internal/column"
	"sqlsink/internal/projection"
)

// Writer persists batches of projected rows. Implementations complete the
// whole batch before returning and do not retry; at most one WriteBatch call
// is in flight per Writer.
type Writer interface {
	WriteBatch(ctx context.Context, rows []projection.Row) (int64, error)
}

// Config is what a strategy needs to build a Writer.
type Config struct {
	DB     *sql.DB
	Schema string
	Table  string
	Model  *column.Model
	// DisableTriggers suppresses table triggers while a batch is written.
	DisableTriggers bool
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	switch {
	case c.DB == nil:
		return errors.New("storage: DB must not be nil")
	case c.Schema == "":
		return errors.New("storage: schema must not be empty")
	case c.Table == "":
		return errors.New("storage: table must not be empty")
	case c.Model == nil:
		return errors.New("storage: column model must not be nil")
	}
	return nil
}

// Factory builds a Writer for a strategy.
type Factory func(cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a strategy name. It is
// typically called from backend packages' init() functions.
func Register(strategy string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strategy] = f
}

// New builds a Writer using the named strategy.
func New(strategy string, cfg Config) (Writer, error) {
	mu.RLock()
	f, ok := factories[strategy]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no writer registered for strategy %q", strategy)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return f(cfg)
}

// Strategies lists the registered strategy names, sorted.
func Strategies() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WriteError reports a failed write. Err is the driver error.
type WriteError struct {
	Op    string
	Table string
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s (%d rows) %s: %v", e.Table, e.Rows, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
