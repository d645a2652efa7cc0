package sink

import (
	"time"

	"sqlsink/internal/storage/mssql"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultSchema         = "dbo"
	DefaultStrategy       = mssql.StrategyBulk
	DefaultBatchSizeLimit = 50
	DefaultBatchPeriod    = 5 * time.Second
	DefaultQueueLimit     = 10000
	DefaultDrainTimeout   = 30 * time.Second
)

// Options configures a Sink or an Audit sink.
type Options struct {
	Schema          string
	Table           string
	AutoCreateTable bool

	// Strategy names a registered storage strategy ("bulk" or "insert").
	// Audit sinks always insert row by row and ignore it.
	Strategy        string
	DisableTriggers bool

	BatchSizeLimit int
	BatchPeriod    time.Duration
	// QueueLimit bounds buffered events. Events emitted while the queue is
	// full are dropped.
	QueueLimit int

	RetentionPeriod time.Duration
	PruningInterval time.Duration

	// DrainTimeout bounds Close. Writes still running when it expires are
	// cancelled and their batches counted as failed.
	DrainTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Schema == "" {
		o.Schema = DefaultSchema
	}
	if o.Strategy == "" {
		o.Strategy = DefaultStrategy
	}
	if o.BatchSizeLimit <= 0 {
		o.BatchSizeLimit = DefaultBatchSizeLimit
	}
	if o.BatchPeriod <= 0 {
		o.BatchPeriod = DefaultBatchPeriod
	}
	if o.QueueLimit <= 0 {
		o.QueueLimit = DefaultQueueLimit
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	return o
}
