// Package retention deletes log rows older than a retention horizon on a
// fixed cadence.
//
// A Pruner is Idle or Pruning. Each tick moves Idle to Pruning, runs one
// DELETE and returns to Idle. A tick that fires while a delete is still in
// flight is skipped, not queued. Failures are logged and counted; the
// schedule keeps running and the next tick retries.
package retention

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-sql/civil"
	"github.com/robfig/cron/v3"

	"sqlsink/internal/column"
	"sqlsink/internal/logging"
	"sqlsink/internal/metrics"
	"sqlsink/internal/sqltype"
	"sqlsink/internal/storage/mssql/ddl"
)

// DefaultPruningInterval is used when Config.PruningInterval is zero.
const DefaultPruningInterval = 30 * time.Minute

// State is the pruner's position in its two-state cycle.
type State int32

const (
	Idle State = iota
	Pruning
)

func (s State) String() string {
	if s == Pruning {
		return "pruning"
	}
	return "idle"
}

// Config configures a Pruner.
type Config struct {
	DB     ddl.Execer
	Schema string
	Table  string
	Model  *column.Model

	// RetentionPeriod is the maximum row age. Zero disables pruning.
	RetentionPeriod time.Duration
	// PruningInterval is the tick cadence. Defaults to DefaultPruningInterval.
	// It must be at least one second; a fractional second is dropped.
	PruningInterval time.Duration

	Logger *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Pruner periodically deletes expired rows.
type Pruner struct {
	db        ddl.Execer
	table     string
	stmt      string
	retention time.Duration
	interval  time.Duration
	utc       bool
	offset    bool
	log       *slog.Logger
	now       func() time.Time

	state atomic.Int32

	mu   sync.Mutex
	cron *cron.Cron
}

// New validates cfg and returns a Pruner. Pruning needs the TimeStamp column,
// so a positive retention on a model without it is a configuration error.
func New(cfg Config) (*Pruner, error) {
	if cfg.RetentionPeriod < 0 {
		return nil, fmt.Errorf("retention: negative retention period %s", cfg.RetentionPeriod)
	}
	if cfg.PruningInterval < 0 {
		return nil, fmt.Errorf("retention: negative pruning interval %s", cfg.PruningInterval)
	}
	if cfg.PruningInterval > 0 && cfg.PruningInterval < time.Second {
		return nil, fmt.Errorf("retention: pruning interval %s is below the 1s schedule resolution", cfg.PruningInterval)
	}
	p := &Pruner{
		db:        cfg.DB,
		table:     ddl.QualifiedName(cfg.Schema, cfg.Table),
		retention: cfg.RetentionPeriod,
		interval:  cfg.PruningInterval,
		log:       logging.OrDiscard(cfg.Logger).With("component", "retention"),
		now:       cfg.Now,
	}
	if p.interval == 0 {
		p.interval = DefaultPruningInterval
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.retention == 0 {
		return p, nil
	}

	if cfg.DB == nil {
		return nil, fmt.Errorf("retention: DB is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("retention: Model is required")
	}
	if cfg.Schema == "" || cfg.Table == "" {
		return nil, fmt.Errorf("retention: schema and table are required")
	}
	ts, ok := cfg.Model.Resolve(column.TimeStamp)
	if !ok {
		return nil, &column.ConfigError{Column: column.TimeStamp.String(), Msg: "retention requires the TimeStamp column"}
	}
	p.utc = cfg.Model.TimeStampOptions().ConvertToUTC
	p.offset = ts.Type == sqltype.DateTimeOffset
	p.stmt = Statement(cfg.Schema, cfg.Table, ts.Name)
	return p, nil
}

// Statement returns the DELETE issued on each tick:
//
//	DELETE FROM [dbo].[Logs] WHERE [TimeStamp] < @cutoff
func Statement(schema, table, tsColumn string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s < @cutoff",
		ddl.QualifiedName(schema, table), ddl.QuoteIdent(tsColumn))
}

// Enabled reports whether a retention period is configured.
func (p *Pruner) Enabled() bool { return p.retention > 0 }

// State returns the current state.
func (p *Pruner) State() State { return State(p.state.Load()) }

// Cutoff returns the horizon for a tick at the current time.
func (p *Pruner) Cutoff() time.Time {
	c := p.now().Add(-p.retention)
	if p.utc {
		return c.UTC()
	}
	return c
}

// cutoffValue is the @cutoff argument. DATETIMEOFFSET columns compare
// against the instant. Other date columns hold wall-clock values with no
// offset, so the cutoff is sent as a zone-less DATETIME2 in the same clock.
func (p *Pruner) cutoffValue(c time.Time) any {
	if p.offset {
		return c
	}
	return civil.DateTimeOf(c)
}

// Tick runs one prune cycle. ran is false when pruning is disabled or a
// previous cycle is still in flight.
func (p *Pruner) Tick(ctx context.Context) (deleted int64, ran bool, err error) {
	if !p.Enabled() {
		return 0, false, nil
	}
	if !p.state.CompareAndSwap(int32(Idle), int32(Pruning)) {
		p.log.Debug("retention: tick skipped, previous prune still running", "table", p.table)
		return 0, false, nil
	}
	defer p.state.Store(int32(Idle))

	start := time.Now()
	cutoff := p.Cutoff()
	res, err := p.db.ExecContext(ctx, p.stmt, sql.Named("cutoff", p.cutoffValue(cutoff)))
	if err == nil {
		deleted, err = res.RowsAffected()
	}
	metrics.RecordStep(p.table, "prune", err, time.Since(start))
	if err != nil {
		p.log.Error("retention: prune failed", "table", p.table, "cutoff", cutoff, "err", err)
		return 0, true, fmt.Errorf("prune %s: %w", p.table, err)
	}
	metrics.RecordRows(p.table, metrics.KindPruned, deleted)
	p.log.Info("retention: pruned", "table", p.table, "cutoff", cutoff, "rows", deleted,
		"elapsed", time.Since(start).Truncate(time.Millisecond))
	return deleted, true, nil
}

// Start schedules Tick every PruningInterval until Stop. It does nothing
// when pruning is disabled or already started. ctx is passed to each tick.
func (p *Pruner) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return
	}
	c := cron.New(cron.WithLogger(logging.CronLogger{L: p.log}))
	c.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		_, _, _ = p.Tick(ctx)
	}))
	c.Start()
	p.cron = c
	p.log.Info("retention: scheduled", "table", p.table, "retention", p.retention, "interval", p.interval)
}

// Stop halts the schedule and waits for a running tick to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// Running reports whether the schedule is active.
func (p *Pruner) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}
