package ddl

import (
	"context"
	"database/sql"
	"fmt"

	"sqlsink/internal/column"
)

// Execer runs a statement. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnsureTable creates the schema, the table and its indexes if they do not
// already exist. Statements run in that order and the first failure stops
// the sequence. The operation is idempotent.
func EnsureTable(ctx context.Context, db Execer, schema, table string, m *column.Model) error {
	createTable, err := BuildCreateTable(schema, table, m)
	if err != nil {
		return err
	}
	indexes, err := BuildCreateIndexes(schema, table, m)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, BuildCreateSchema(schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table %s: %w", QualifiedName(schema, table), err)
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", QualifiedName(schema, table), err)
		}
	}
	return nil
}
