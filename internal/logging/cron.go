package logging

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts a slog.Logger to cron.Logger. Scheduler chatter is
// logged at debug level.
type CronLogger struct {
	L *slog.Logger
}

var _ cron.Logger = CronLogger{}

// Info implements cron.Logger.
func (c CronLogger) Info(msg string, keysAndValues ...any) {
	OrDiscard(c.L).Debug("cron: "+msg, keysAndValues...)
}

// Error implements cron.Logger.
func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	OrDiscard(c.L).Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
