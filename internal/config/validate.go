package config

import (
	"fmt"
	"strings"
	"time"

	"sqlsink/internal/sqltype"
	"sqlsink/internal/storage/mssql"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block startup.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "sink.table_name" or "columns.additional[2].data_type".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints c without changing it. Structural problems in the column
// model are found by building it, so at most one model error is reported.
func Validate(c *Config) []Issue {
	var issues []Issue
	issues = append(issues, validateSink(c.Sink)...)
	issues = append(issues, validateColumns(c.Columns)...)

	if !HasErrors(issues) {
		if _, err := c.Model(); err != nil {
			issues = append(issues, Issue{SeverityError, "columns", err.Error()})
		}
	}
	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{sev, "sink." + path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.TableName) == "" {
		add(SeverityError, "table_name", "table_name must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(s.Strategy)) {
	case "", mssql.StrategyBulk, mssql.StrategyInsert:
	default:
		add(SeverityError, "strategy", "unknown strategy %q; use %q or %q", s.Strategy, mssql.StrategyBulk, mssql.StrategyInsert)
	}
	if s.Audit && s.DisableTriggers {
		add(SeverityError, "disable_triggers", "disable_triggers is not supported by audit sinks")
	}
	if s.BatchSizeLimit != nil && *s.BatchSizeLimit <= 0 {
		add(SeverityError, "batch_size_limit", "batch_size_limit must be > 0")
	}
	if s.QueueLimit != nil && *s.QueueLimit <= 0 {
		add(SeverityError, "queue_limit", "queue_limit must be > 0")
	}
	if s.BatchSizeLimit != nil && s.QueueLimit != nil && *s.QueueLimit > 0 && *s.QueueLimit < *s.BatchSizeLimit {
		add(SeverityWarning, "queue_limit", "queue_limit %d is smaller than batch_size_limit %d; batches will never fill", *s.QueueLimit, *s.BatchSizeLimit)
	}
	if s.BatchPeriod != nil && s.BatchPeriod.Duration <= 0 {
		add(SeverityError, "batch_period", "batch_period must be > 0")
	}
	if s.RetentionPeriod != nil && s.RetentionPeriod.Duration < 0 {
		add(SeverityError, "retention_period", "retention_period must not be negative")
	}
	if s.PruningInterval != nil {
		switch {
		case s.PruningInterval.Duration < 0:
			add(SeverityError, "pruning_interval", "pruning_interval must not be negative")
		case s.PruningInterval.Duration > 0 && s.PruningInterval.Duration < time.Second:
			add(SeverityError, "pruning_interval", "pruning_interval must be at least 1s")
		case s.RetentionPeriod == nil || s.RetentionPeriod.Duration == 0:
			add(SeverityWarning, "pruning_interval", "pruning_interval has no effect without retention_period")
		}
	}
	if s.DrainTimeout != nil && s.DrainTimeout.Duration < 0 {
		add(SeverityError, "drain_timeout", "drain_timeout must not be negative")
	}
	if s.Audit && (s.BatchSizeLimit != nil || s.BatchPeriod != nil || s.RetentionPeriod != nil) {
		add(SeverityWarning, "audit", "batching and retention settings are ignored by audit sinks")
	}
	return issues
}

func validateColumns(c Columns) []Issue {
	var issues []Issue
	check := func(path string, col *Column) {
		if col == nil || col.DataType == "" {
			return
		}
		if _, ok := sqltype.TryParse(col.DataType); !ok {
			issues = append(issues, Issue{SeverityError, path + ".data_type", fmt.Sprintf("unknown data type %q", col.DataType)})
		}
	}
	check("columns.id", c.ID)
	check("columns.message", c.Message)
	check("columns.message_template", c.MessageTemplate)
	check("columns.exception", c.Exception)
	if c.Level != nil {
		check("columns.level", &c.Level.Column)
	}
	if c.TimeStamp != nil {
		check("columns.time_stamp", &c.TimeStamp.Column)
	}
	if c.Properties != nil {
		check("columns.properties", &c.Properties.Column)
	}
	if c.LogEvent != nil {
		check("columns.log_event", &c.LogEvent.Column)
	}
	for i := range c.Additional {
		path := fmt.Sprintf("columns.additional[%d]", i)
		if strings.TrimSpace(c.Additional[i].ColumnName) == "" {
			issues = append(issues, Issue{SeverityError, path + ".column_name", "column_name must not be empty"})
		}
		check(path, &c.Additional[i])
	}
	return issues
}
