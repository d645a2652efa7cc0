package main

import (
	"flag"
	"strings"
)

// Flags holds command-line settings. Each flag's default is seeded from an
// environment variable so the binary is configurable without arguments.
type Flags struct {
	ConfigPath string
	DSN        string
	Input      string

	Validate bool
	PrintDDL bool
	Audit    bool
	Verbose  bool

	MetricsBackend string
	PushgatewayURL string
	DogStatsDAddr  string
	MetricsJob     string
}

// LoadFromArgs defines the flags on fs with defaults taken from getenv and
// parses args. Explicit flags win over the environment.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Flags, error) {
	f := &Flags{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	fs.StringVar(&f.ConfigPath, "config", envOr("SQLSINK_CONFIG", "sqlsink.yaml"), "config file (.json, .yaml or .yml)")
	fs.StringVar(&f.DSN, "dsn", getenv("SQLSINK_DSN"), "SQL Server connection string; overrides connection_string in the config")
	fs.StringVar(&f.Input, "input", envOr("SQLSINK_INPUT", "-"), "newline-delimited compact JSON events, or - for stdin")
	fs.BoolVar(&f.Validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.PrintDDL, "print-ddl", false, "print the CREATE statements for the configured table and exit")
	fs.BoolVar(&f.Audit, "audit", boolEnvOr("SQLSINK_AUDIT", false), "write each event synchronously and fail on the first write error")
	fs.BoolVar(&f.Verbose, "v", false, "enable debug logging")

	fs.StringVar(&f.MetricsBackend, "metrics-backend", envOr("METRICS_BACKEND", "none"), "metrics backend: pushgateway, datadog or none")
	fs.StringVar(&f.PushgatewayURL, "pushgateway-url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
	fs.StringVar(&f.DogStatsDAddr, "dogstatsd-addr", envOr("DOGSTATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address")
	fs.StringVar(&f.MetricsJob, "metrics-job", envOr("METRICS_JOB", "sqlsink"), "Pushgateway job name")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}
