// Command sqlsink reads newline-delimited compact JSON log events and writes
// them to a SQL Server table shaped by a column model.
//
//	sqlsink -config sink.yaml -dsn "sqlserver://..." -input events.clef
//	sqlsink -config sink.yaml -print-ddl
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlsink/internal/column"
	"sqlsink/internal/config"
	"sqlsink/internal/logevent"
	"sqlsink/internal/logging"
	"sqlsink/internal/metrics"
	"sqlsink/internal/metrics/datadog"
	"sqlsink/internal/metrics/prompush"
	"sqlsink/internal/sink"
	"sqlsink/internal/storage/mssql"
	"sqlsink/internal/storage/mssql/ddl"
)

// maxLineSize bounds a single input event.
const maxLineSize = 4 << 20 // 4 MiB

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr))
}

// run is main without process globals. It returns the exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sqlsink", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags, err := LoadFromArgs(fs, getenv, args)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if flags.Audit {
		cfg.Sink.Audit = true
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", flags.ConfigPath)
		return 1
	}
	if flags.Validate {
		fmt.Fprintf(stderr, "configuration is valid: %s\n", flags.ConfigPath)
		return 0
	}

	model, err := cfg.Model()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	opts := cfg.SinkOptions()
	if opts.Schema == "" {
		opts.Schema = sink.DefaultSchema
	}

	if flags.PrintDDL {
		if err := printDDL(stdout, opts.Schema, opts.Table, model); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		return 0
	}

	level := cfg.Logging.Level
	if flags.Verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: cfg.Logging.Format, Output: stderr})

	flushMetrics := setupMetrics(flags, logger)
	defer flushMetrics()

	dsn := flags.DSN
	if dsn == "" {
		dsn = cfg.ConnectionString
	}
	if dsn == "" {
		logger.Error("sqlsink: no connection string; set -dsn, SQLSINK_DSN or connection_string")
		return 1
	}

	in, closeIn, err := openInput(flags.Input, stdin)
	if err != nil {
		logger.Error("sqlsink: open input", "err", err)
		return 1
	}
	defer closeIn()

	db, err := mssql.Open(ctx, dsn)
	if err != nil {
		logger.Error("sqlsink: connect", "err", err)
		return 1
	}
	defer db.Close()

	start := time.Now()
	if cfg.Sink.Audit {
		a, err := sink.NewAudit(ctx, db, model, opts, logger)
		if err != nil {
			logger.Error("sqlsink: audit sink", "err", err)
			return 1
		}
		err = readEvents(ctx, in, logger, func(e *logevent.Event) error {
			return a.Emit(ctx, e)
		})
		if err != nil {
			logger.Error("sqlsink: audit write failed", "err", err)
			return 1
		}
		logger.Info("sqlsink: done", "elapsed", time.Since(start).Truncate(time.Millisecond))
		return 0
	}

	s, err := sink.New(ctx, db, model, opts, logger)
	if err != nil {
		logger.Error("sqlsink: sink", "err", err)
		return 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readEvents(gctx, in, logger, func(e *logevent.Event) error {
			s.Emit(e)
			return nil
		})
	})
	readErr := g.Wait()
	if err := s.Close(); err != nil {
		logger.Error("sqlsink: close", "err", err)
	}
	st := s.Stats()
	logger.Info("sqlsink: done", "written", st.Written, "failed", st.Failed, "dropped", st.Dropped,
		"elapsed", time.Since(start).Truncate(time.Millisecond))
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		logger.Error("sqlsink: read input", "err", readErr)
		return 1
	}
	if st.Failed > 0 {
		return 1
	}
	return 0
}

// readEvents decodes one event per non-blank line and passes it to emit.
// Lines that do not decode are logged and skipped; an emit error stops the read.
func readEvents(ctx context.Context, r io.Reader, logger *slog.Logger, emit func(*logevent.Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		e, err := logevent.DecodeJSON([]byte(text))
		if err != nil {
			logger.Warn("sqlsink: skipping undecodable line", "line", line, "err", err)
			continue
		}
		if err := emit(e); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return bufio.NewReaderSize(f, 1<<20), func() { _ = f.Close() }, nil
}

func printDDL(w io.Writer, schema, table string, m *column.Model) error {
	createTable, err := ddl.BuildCreateTable(schema, table, m)
	if err != nil {
		return err
	}
	indexes, err := ddl.BuildCreateIndexes(schema, table, m)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, ddl.BuildCreateSchema(schema))
	fmt.Fprintln(w, createTable)
	for _, stmt := range indexes {
		fmt.Fprintln(w, stmt)
	}
	return nil
}

// setupMetrics installs the selected backend and returns the shutdown flush.
// Backend failures are logged and metrics stay disabled.
func setupMetrics(f *Flags, logger *slog.Logger) func() {
	nop := func() {}
	switch strings.ToLower(f.MetricsBackend) {
	case "pushgateway":
		b, err := prompush.NewBackend(f.MetricsJob, f.PushgatewayURL)
		if err != nil {
			logger.Warn("metrics: pushgateway backend unavailable, using nop", "err", err)
			return nop
		}
		metrics.SetBackend(b)
		logger.Info("metrics: pushgateway", "url", f.PushgatewayURL, "job", f.MetricsJob)
		return func() {
			if err := metrics.Flush(); err != nil {
				logger.Warn("metrics: flush", "err", err)
			}
		}
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       f.DogStatsDAddr,
			Namespace:  "sqlsink.",
			GlobalTags: []string{"service:sqlsink"},
		})
		if err != nil {
			logger.Warn("metrics: datadog backend unavailable, using nop", "err", err)
			return nop
		}
		metrics.SetBackend(b)
		logger.Info("metrics: datadog", "addr", f.DogStatsDAddr)
		return func() {
			if err := b.Close(); err != nil {
				logger.Warn("metrics: close", "err", err)
			}
		}
	case "", "none":
		return nop
	default:
		logger.Warn("metrics: unknown backend, metrics disabled", "backend", f.MetricsBackend)
		return nop
	}
}
