package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"sqlsink/internal/projection"
	"sqlsink/internal/storage"
)

// BulkWriter streams each batch into the table with the TDS bulk copy
// protocol. The destination table must already exist with matching columns.
type BulkWriter struct {
	db      *sql.DB
	fqn     string
	columns []string
	opts    mssql.BulkOptions
}

var _ storage.Writer = (*BulkWriter)(nil)

// NewBulkWriter returns a bulk copy writer. The column mapping is computed
// once from the model; the identity column is left to the server.
func NewBulkWriter(cfg storage.Config) (*BulkWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cols := writeColumns(cfg.Model)
	if len(cols) == 0 {
		return nil, fmt.Errorf("mssql bulk: table %s has no writable columns", cfg.Table)
	}
	return &BulkWriter{
		db:      cfg.DB,
		fqn:     msFQN(cfg.Schema, cfg.Table),
		columns: cols,
		opts:    mssql.BulkOptions{FireTriggers: !cfg.DisableTriggers, KeepNulls: true},
	}, nil
}

// WriteBatch copies rows in one bulk operation on a dedicated connection
// and transaction. A failure rolls the transaction back and is returned as
// a *storage.WriteError.
func (w *BulkWriter) WriteBatch(ctx context.Context, rows []projection.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	fail := func(op string, err error) (int64, error) {
		return 0, &storage.WriteError{Op: op, Table: w.fqn, Rows: len(rows), Err: err}
	}

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return fail("connect", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin tx", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(w.fqn, w.opts, w.columns...))
	if err != nil {
		rollback()
		return fail("prepare bulk", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rowValues(rows[i], w.columns)...); err != nil {
			_ = stmt.Close()
			rollback()
			return fail(fmt.Sprintf("bulk row %d", i), err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return fail("bulk finalize", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return fail("rows affected", err)
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return n, nil
}
