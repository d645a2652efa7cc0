package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"sqlsink/internal/projection"
	"sqlsink/internal/storage"
)

// InsertWriter writes each row with a parameterized INSERT. Statement text
// is built once per row shape and cached for the writer's lifetime.
type InsertWriter struct {
	db              *sql.DB
	fqn             string
	identity        string
	disableTriggers bool

	mu    sync.Mutex
	stmts map[uint64][]insertShape
}

// insertShape is one cached INSERT, kept with its column list so that a
// hash collision never returns another shape's text.
type insertShape struct {
	cols string
	text string
}

var _ storage.Writer = (*InsertWriter)(nil)

// NewInsertWriter returns a row-insert writer.
func NewInsertWriter(cfg storage.Config) (*InsertWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &InsertWriter{
		db:              cfg.DB,
		fqn:             msFQN(cfg.Schema, cfg.Table),
		disableTriggers: cfg.DisableTriggers,
		stmts:           make(map[uint64][]insertShape),
	}
	if id, ok := cfg.Model.Identity(); ok {
		w.identity = id.Name
	}
	return w, nil
}

// WriteBatch inserts every row inside one transaction on a dedicated
// connection. Rows sharing a shape reuse one prepared statement. With
// DisableTriggers set, table triggers are disabled around the inserts.
func (w *InsertWriter) WriteBatch(ctx context.Context, rows []projection.Row) (int64, error) {
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

	if w.disableTriggers {
		if _, err := tx.ExecContext(ctx, "DISABLE TRIGGER ALL ON "+w.fqn); err != nil {
			rollback()
			return fail("disable triggers", err)
		}
	}

	prepared := make(map[string]*sql.Stmt)
	defer func() {
		for _, s := range prepared {
			_ = s.Close()
		}
	}()

	var total int64
	for i, row := range rows {
		cols, args := w.bind(row)
		key, text := w.statement(cols)
		stmt, ok := prepared[key]
		if !ok {
			stmt, err = tx.PrepareContext(ctx, text)
			if err != nil {
				rollback()
				return fail("prepare insert", err)
			}
			prepared[key] = stmt
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			rollback()
			return fail(fmt.Sprintf("insert row %d", i), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	if w.disableTriggers {
		if _, err := tx.ExecContext(ctx, "ENABLE TRIGGER ALL ON "+w.fqn); err != nil {
			rollback()
			return fail("enable triggers", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return total, nil
}

// bind derives the row's column list, minus the identity column, and the
// matching @P0.. arguments.
func (w *InsertWriter) bind(row projection.Row) ([]string, []any) {
	cols := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, cv := range row {
		if w.identity != "" && strings.EqualFold(cv.Name, w.identity) {
			continue
		}
		args = append(args, sql.Named(fmt.Sprintf("P%d", len(cols)), toDriverValue(cv.Value)))
		cols = append(cols, cv.Name)
	}
	return cols, args
}

// statement returns the shape key and INSERT text for a column list:
//
//	INSERT INTO [dbo].[Logs] ([Message],[Level]) VALUES (@P0,@P1)
func (w *InsertWriter) statement(cols []string) (string, string) {
	shape := strings.Join(cols, "\x00")
	h := xxh3.HashString(shape)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.stmts[h] {
		if c.cols == shape {
			return shape, c.text
		}
	}
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("@P%d", i)
	}
	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.fqn, strings.Join(mapIdent(cols), ","), strings.Join(params, ","))
	w.stmts[h] = append(w.stmts[h], insertShape{cols: shape, text: text})
	return shape, text
}
