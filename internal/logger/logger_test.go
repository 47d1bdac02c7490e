package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
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
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer
	Setup(Config{Level: "warn", Service: "vedtak", Version: "1.2.3", Output: &buf})

	slog.Info("dropped")
	slog.Warn("Decision attested", "case_instance_id", "abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "Decision attested" {
		t.Errorf("unexpected message %v", record["msg"])
	}
	if record["service"] != "vedtak" || record["version"] != "1.2.3" {
		t.Errorf("missing service attributes: %v", record)
	}
	if ts, ok := record["time"].(string); !ok || len(ts) != len("2006-01-02 15:04:05") {
		t.Errorf("unexpected time format %v", record["time"])
	}
}
