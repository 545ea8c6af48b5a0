package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	log := New()

	if log == nil {
		t.Fatal("expected logger to be created")
	}
	if log.logger == nil {
		t.Error("expected slog.Logger to be set")
	}
	if log.GetLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetLevel_FiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: slog.LevelInfo, Output: &buf})

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}

	log.SetLevel(slog.LevelDebug)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug record after SetLevel, got %q", buf.String())
	}
}

func TestNewWithOptions_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: slog.LevelInfo, Format: "json", Output: &buf})

	log.Info("stage advanced", "session_id", "s1", "status", "waiting")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "stage advanced" {
		t.Errorf("expected msg field, got %v", record["msg"])
	}
	if record["session_id"] != "s1" {
		t.Errorf("expected session_id attribute, got %v", record["session_id"])
	}
}

func TestWith_SharesLevelAndHTTPSwitch(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithOptions(Options{Level: slog.LevelWarn, Output: &buf})
	child := parent.With("component", "competitions")

	child.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected child to inherit warn level, got %q", buf.String())
	}

	parent.SetLevel(slog.LevelInfo)
	child.Info("kept")
	if !strings.Contains(buf.String(), "component=competitions") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}

	parent.EnableHTTPLogging()
	if !child.IsHTTPLoggingEnabled() {
		t.Error("expected child to observe parent's HTTP logging switch")
	}
	parent.DisableHTTPLogging()
	if child.IsHTTPLoggingEnabled() {
		t.Error("expected child to observe HTTP logging being disabled")
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing happens")
	if log.IsHTTPLoggingEnabled() {
		t.Error("expected HTTP logging to default to disabled")
	}
}
