// Package sink buffers log events and hands them to a storage writer.
//
// Sink is the batching variant: Emit never blocks, failures go to the
// diagnostic logger and the failed batch is dropped. Audit writes each event
// synchronously and returns failures to the caller.
package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlsink/internal/column"
	"sqlsink/internal/logevent"
	"sqlsink/internal/logging"
	"sqlsink/internal/metrics"
	"sqlsink/internal/projection"
	"sqlsink/internal/retention"
	"sqlsink/internal/storage"
	"sqlsink/internal/storage/mssql/ddl"
)

// Stats are running totals for a Sink.
type Stats struct {
	Emitted int64
	Dropped int64
	Written int64
	Failed  int64
	Batches int64
}

// Sink batches events and writes them in the background.
type Sink struct {
	opts      Options
	table     string
	writer    storage.Writer
	projector *projection.Projector
	pruner    *retention.Pruner
	log       *slog.Logger

	// ctx carries values to writes. It is detached from the caller's
	// context so Close can drain, and cancelled when the drain times out.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	queue  chan *logevent.Event
	g      *errgroup.Group

	emitted, dropped, written, failed, batches atomic.Int64
}

// New builds a Sink for the table described by opts and m. With
// AutoCreateTable set the schema, table and indexes are created first; a DDL
// failure is logged and the sink continues against the existing table.
// The pruner, when a retention period is set, runs until Close.
func New(ctx context.Context, db *sql.DB, m *column.Model, opts Options, logger *slog.Logger) (*Sink, error) {
	opts = opts.withDefaults()
	log := logging.OrDiscard(logger).With("component", "sink")

	if opts.AutoCreateTable {
		createTable(ctx, db, m, opts, log)
	}

	w, err := storage.New(opts.Strategy, storage.Config{
		DB:              db,
		Schema:          opts.Schema,
		Table:           opts.Table,
		Model:           m,
		DisableTriggers: opts.DisableTriggers,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	p, err := projection.New(m)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	pr, err := retention.New(retention.Config{
		DB:              db,
		Schema:          opts.Schema,
		Table:           opts.Table,
		Model:           m,
		RetentionPeriod: opts.RetentionPeriod,
		PruningInterval: opts.PruningInterval,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}

	s := launch(ctx, w, p, pr, opts, log)
	log.Info("sink: started", "table", s.table, "strategy", opts.Strategy,
		"batch_size", opts.BatchSizeLimit, "batch_period", opts.BatchPeriod)
	return s, nil
}

// launch wires a sink around an existing writer and starts its loop.
func launch(ctx context.Context, w storage.Writer, p *projection.Projector, pr *retention.Pruner, opts Options, log *slog.Logger) *Sink {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Sink{
		opts:      opts,
		table:     ddl.QualifiedName(opts.Schema, opts.Table),
		writer:    w,
		projector: p,
		pruner:    pr,
		log:       log,
		ctx:       wctx,
		cancel:    cancel,
		queue:     make(chan *logevent.Event, opts.QueueLimit),
		g:         new(errgroup.Group),
	}
	s.g.Go(s.run)
	if pr != nil {
		pr.Start(ctx)
	}
	return s
}

func createTable(ctx context.Context, db ddl.Execer, m *column.Model, opts Options, log *slog.Logger) {
	start := time.Now()
	err := ddl.EnsureTable(ctx, db, opts.Schema, opts.Table, m)
	table := ddl.QualifiedName(opts.Schema, opts.Table)
	metrics.RecordStep(table, "ddl", err, time.Since(start))
	if err != nil {
		log.Error("sink: auto-create failed, continuing with existing table", "table", table, "err", err)
		return
	}
	log.Info("sink: ensured table", "table", table)
}

// Emit enqueues e without blocking. It returns false when the event was
// dropped because the queue is full or the sink is closed.
func (s *Sink) Emit(e *logevent.Event) bool {
	if e == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop("closed")
		return false
	}
	select {
	case s.queue <- e:
		s.emitted.Add(1)
		metrics.RecordRows(s.table, metrics.KindEmitted, 1)
		return true
	default:
		s.drop("queue full")
		return false
	}
}

func (s *Sink) drop(reason string) {
	n := s.dropped.Add(1)
	metrics.RecordRows(s.table, metrics.KindDropped, 1)
	// Log the first drop and then every thousandth to keep overflow quiet.
	if n == 1 || n%1000 == 0 {
		s.log.Warn("sink: event dropped", "table", s.table, "reason", reason, "dropped_total", n)
	}
}

// Close stops accepting events, flushes what is buffered and stops the
// pruner, waiting at most Options.DrainTimeout. It is safe to call more than
// once.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.DrainTimeout)
	defer cancel()
	return s.CloseContext(ctx)
}

// CloseContext is Close with the drain bounded by ctx. When ctx is done
// before the queue is drained, in-flight writes are cancelled, the remaining
// events are counted as failed and ctx's error is returned.
func (s *Sink) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.log.Warn("sink: drain interrupted, cancelling writes", "table", s.table, "err", ctx.Err())
		s.cancel()
		err = <-done
		if err == nil {
			err = fmt.Errorf("sink: drain: %w", ctx.Err())
		}
	}
	s.cancel()
	if s.pruner != nil {
		s.pruner.Stop()
	}
	st := s.Stats()
	s.log.Info("sink: closed", "table", s.table, "written", st.Written,
		"failed", st.Failed, "dropped", st.Dropped, "batches", st.Batches)
	return err
}

// Stats returns the current totals.
func (s *Sink) Stats() Stats {
	return Stats{
		Emitted: s.emitted.Load(),
		Dropped: s.dropped.Load(),
		Written: s.written.Load(),
		Failed:  s.failed.Load(),
		Batches: s.batches.Load(),
	}
}

// run is the single consumer of the queue. It flushes when the batch is full,
// on every BatchPeriod tick, and once more after the queue is closed.
func (s *Sink) run() error {
	ticker := time.NewTicker(s.opts.BatchPeriod)
	defer ticker.Stop()

	batch := make([]*logevent.Event, 0, s.opts.BatchSizeLimit)
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				s.flush(batch)
				return nil
			}
			batch = append(batch, e)
			if len(batch) >= s.opts.BatchSizeLimit {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			s.flush(batch)
			batch = batch[:0]
		}
	}
}

// flush projects and writes one batch. A failed batch is logged, counted
// and dropped.
func (s *Sink) flush(batch []*logevent.Event) {
	if len(batch) == 0 {
		return
	}
	rows := make([]projection.Row, len(batch))
	for i, e := range batch {
		rows[i] = s.projector.Project(e)
	}

	start := time.Now()
	n, err := s.writer.WriteBatch(s.ctx, rows)
	elapsed := time.Since(start)
	metrics.RecordStep(s.table, "write", err, elapsed)
	metrics.RecordBatches(s.table, 1)
	s.batches.Add(1)

	if err != nil {
		s.failed.Add(int64(len(rows)))
		metrics.RecordRows(s.table, metrics.KindFailed, int64(len(rows)))
		var we *storage.WriteError
		if errors.As(err, &we) {
			s.log.Error("sink: batch dropped", "table", s.table, "rows", len(rows), "op", we.Op, "err", we.Err)
		} else {
			s.log.Error("sink: batch dropped", "table", s.table, "rows", len(rows), "err", err)
		}
		return
	}
	s.written.Add(int64(len(rows)))
	metrics.RecordRows(s.table, metrics.KindWritten, int64(len(rows)))
	s.log.Debug("sink: batch written", "table", s.table, "rows", len(rows), "affected", n,
		"elapsed", elapsed.Truncate(time.Millisecond))
}
