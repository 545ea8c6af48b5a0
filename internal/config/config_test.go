package config_test

import (
	"io"
	"testing"
	"time"

	"github.com/crowdsong/crowdsong/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil, io.Discard)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8081 || cfg.DBPath != "crowdsong.db" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SweepInterval != 30*time.Second || cfg.RateIdleTTL != 10*time.Minute {
		t.Errorf("unexpected duration defaults: %+v", cfg)
	}
	if cfg.Addr() != ":8081" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CROWDSONG_PORT", "9000")
	t.Setenv("CROWDSONG_DB_PATH", "/tmp/songs.db")
	t.Setenv("CROWDSONG_SWEEP_INTERVAL", "5s")
	t.Setenv("CROWDSONG_REPUTATION_URL", "http://rep.local")

	cfg, err := config.Load(nil, io.Discard)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9000 || cfg.DBPath != "/tmp/songs.db" || cfg.SweepInterval != 5*time.Second {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.ReputationURL != "http://rep.local" {
		t.Errorf("expected reputation URL, got %q", cfg.ReputationURL)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CROWDSONG_PORT", "9000")

	cfg, err := config.Load([]string{"-port", "7000", "-logformat", "json"}, io.Discard)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7000 || cfg.LogFormat != "json" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad env value", map[string]string{"CROWDSONG_PORT": "abc"}, nil},
		{"port out of range", nil, []string{"-port", "70000"}},
		{"bad log format", nil, []string{"-logformat", "xml"}},
		{"zero sweep", nil, []string{"-sweep", "0s"}},
		{"unknown flag", nil, []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := config.Load(tt.args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}
