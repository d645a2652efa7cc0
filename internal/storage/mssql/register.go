// Package mssql provides the SQL Server write strategies and wires them into
// the storage registry as "bulk" and "insert".
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/microsoft/go-mssqldb/msdsn"

	"sqlsink/internal/storage"
)

// Strategy names registered with storage.
const (
	StrategyBulk   = "bulk"
	StrategyInsert = "insert"
)

func init() {
	storage.Register(StrategyBulk, func(cfg storage.Config) (storage.Writer, error) {
		return NewBulkWriter(cfg)
	})
	storage.Register(StrategyInsert, func(cfg storage.Config) (storage.Writer, error) {
		return NewInsertWriter(cfg)
	})
}

// sqlOpen is a test hook that points to sql.Open by default.
var sqlOpen = sql.Open

// Open validates dsn, opens a SQL Server handle and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sqlOpen("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
