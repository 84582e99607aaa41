package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewWritesServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "docqa", "info")
	logger.Info("upload_started", "job_id", "j1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected json record, got %q: %v", buf.String(), err)
	}
	if record["service"] != "docqa" || record["msg"] != "upload_started" || record["job_id"] != "j1" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "docqa", "warn")
	logger.Info("hidden")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info and debug to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, expected := range cases {
		if got := ParseLevel(in); got != expected {
			t.Fatalf("ParseLevel(%q) = %v, expected %v", in, got, expected)
		}
	}
}
