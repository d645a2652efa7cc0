package mssql

import (
	"context"

	"sqlsink/internal/column"
	"sqlsink/internal/projection"
	"sqlsink/internal/storage"
)

// AuditWriter writes one row per call and returns every failure to the
// caller. It is safe for concurrent use.
type AuditWriter struct {
	w *InsertWriter
}

// NewAuditWriter returns an audit writer. Trigger suppression needs a batch
// to bracket, so a config with DisableTriggers set is rejected.
func NewAuditWriter(cfg storage.Config) (*AuditWriter, error) {
	if cfg.DisableTriggers {
		return nil, &column.ConfigError{Msg: "disabling triggers is not supported by audit writers"}
	}
	w, err := NewInsertWriter(cfg)
	if err != nil {
		return nil, err
	}
	return &AuditWriter{w: w}, nil
}

// WriteRow inserts a single row.
func (a *AuditWriter) WriteRow(ctx context.Context, row projection.Row) error {
	_, err := a.w.WriteBatch(ctx, []projection.Row{row})
	return err
}
