package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// TestParseLevel checks level names and the default.
func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.in); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestNewFormats verifies text and JSON output and level filtering.
func TestNewFormats(t *testing.T) {
	t.Parallel()

	var text bytes.Buffer
	New(Config{Level: "warn", Output: &text}).Info("sink: hidden")
	New(Config{Level: "warn", Output: &text}).Warn("sink: queue full", "table", "dbo.Logs")
	if strings.Contains(text.String(), "hidden") {
		t.Fatalf("text output %q contains a filtered record", text.String())
	}
	if !strings.Contains(text.String(), "table=dbo.Logs") {
		t.Fatalf("text output %q missing attribute", text.String())
	}

	var js bytes.Buffer
	New(Config{Format: "json", Output: &js}).Info("sink: flushed", "rows", 3)
	var rec map[string]any
	if err := json.Unmarshal(js.Bytes(), &rec); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", js.String(), err)
	}
	if rec["msg"] != "sink: flushed" || rec["rows"] != float64(3) {
		t.Fatalf("json record = %v, want msg and rows", rec)
	}
}

// TestCronLogger verifies the cron adapter forwards errors.
func TestCronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := CronLogger{L: New(Config{Level: "debug", Output: &buf})}
	l.Info("start")
	l.Error(errors.New("boom"), "job failed", "entry", 1)

	out := buf.String()
	if !strings.Contains(out, "cron: start") || !strings.Contains(out, "err=boom") {
		t.Fatalf("output %q missing cron records", out)
	}

	CronLogger{}.Info("nil logger is fine")
}
