package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqlsink/internal/logevent"
	"sqlsink/internal/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sink.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func noEnv(string) string { return "" }

// TestRunValidate reports config issues and exits accordingly.
func TestRunValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "valid", body: "sink: { table_name: Logs }\n", wantCode: 0, wantErr: "configuration is valid"},
		{name: "missing table", body: "sink: {}\n", wantCode: 1, wantErr: "sink.table_name"},
		{name: "bad model", body: "sink: { table_name: Logs }\ncolumns: { primary_key: Nope }\n", wantCode: 1, wantErr: "error: columns"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{"-config", writeConfig(t, tt.body), "-validate"}, noEnv, nil, &stdout, &stderr)
			if code != tt.wantCode {
				t.Fatalf("run() = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.wantErr) {
				t.Fatalf("stderr = %q, want it to contain %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

// TestRunPrintDDL prints schema, table and index statements.
func TestRunPrintDDL(t *testing.T) {
	t.Parallel()

	body := "sink: { table_name: Logs, schema_name: app }\ncolumns: { level: { non_clustered_index: true } }\n"
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", writeConfig(t, body), "-print-ddl"}, noEnv, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run() = %d, stderr %q", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"CREATE SCHEMA [app]", "CREATE TABLE [app].[Logs]", "[Level]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout = %q, want it to contain %q", out, want)
		}
	}
}

// TestRunRequiresDSN fails before connecting when no DSN is configured.
func TestRunRequiresDSN(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", writeConfig(t, "sink: { table_name: Logs }\n")}, noEnv, nil, &stdout, &stderr)
	if code != 1 || !strings.Contains(stderr.String(), "no connection string") {
		t.Fatalf("run() = %d, stderr %q, want 1 and a missing DSN message", code, stderr.String())
	}
}

// TestReadEvents skips blank and undecodable lines and stops on emit errors.
func TestReadEvents(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"@t":"2024-01-02T03:04:05Z","@mt":"Hello {Name}","Name":"World"}`,
		``,
		`not json`,
		`{"@t":"2024-01-02T03:04:06Z","@mt":"second","@l":"Error"}`,
	}, "\n")

	var got []*logevent.Event
	err := readEvents(context.Background(), strings.NewReader(input), logging.Discard(), func(e *logevent.Event) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readEvents() emitted %d events, want 2", len(got))
	}
	if msg := got[0].RenderMessage(); msg != "Hello World" {
		t.Fatalf("RenderMessage() = %q, want %q", msg, "Hello World")
	}
	if got[1].Level != logevent.Error {
		t.Fatalf("Level = %v, want Error", got[1].Level)
	}

	boom := errors.New("boom")
	err = readEvents(context.Background(), strings.NewReader(input), logging.Discard(), func(*logevent.Event) error { return boom })
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("readEvents() error = %v, want boom at line 1", err)
	}
}
