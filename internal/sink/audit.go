package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
	"sqlsink/internal/logging"
	"sqlsink/internal/metrics"
	"sqlsink/internal/projection"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/mssql"
	"sqlsink/internal/storage/mssql/ddl"
)

// rowWriter writes a single projected row.
type rowWriter interface {
	WriteRow(ctx context.Context, row projection.Row) error
}

// Audit writes every event before Emit returns. It is safe for concurrent use.
type Audit struct {
	table     string
	writer    rowWriter
	projector *projection.Projector
	log       *slog.Logger
}

// NewAudit builds an audit sink. Batching, queue and retention options do
// not apply. DisableTriggers is rejected with a configuration error.
func NewAudit(ctx context.Context, db *sql.DB, m *column.Model, opts Options, logger *slog.Logger) (*Audit, error) {
	opts = opts.withDefaults()
	log := logging.OrDiscard(logger).With("component", "audit")

	w, err := mssql.NewAuditWriter(storage.Config{
		DB:              db,
		Schema:          opts.Schema,
		Table:           opts.Table,
		Model:           m,
		DisableTriggers: opts.DisableTriggers,
	})
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	p, err := projection.New(m)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	if opts.AutoCreateTable {
		createTable(ctx, db, m, opts, log)
	}
	return &Audit{
		table:     ddl.QualifiedName(opts.Schema, opts.Table),
		writer:    w,
		projector: p,
		log:       log,
	}, nil
}

// Emit writes e and returns any write failure.
func (a *Audit) Emit(ctx context.Context, e *logevent.Event) error {
	if e == nil {
		return nil
	}
	start := time.Now()
	err := a.writer.WriteRow(ctx, a.projector.Project(e))
	metrics.RecordStep(a.table, "audit", err, time.Since(start))
	if err != nil {
		metrics.RecordRows(a.table, metrics.KindFailed, 1)
		return err
	}
	metrics.RecordRows(a.table, metrics.KindWritten, 1)
	return nil
}
