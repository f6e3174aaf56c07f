package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"netwatch/internal/models"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IntervalSeconds != 2 || cfg.TimeoutSeconds != 3 || cfg.FailureThreshold != 3 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Targets) != 5 {
		t.Errorf("expected 5 default targets, got %d", len(cfg.Targets))
	}
	if cfg.Recovery() != 3 {
		t.Errorf("expected recovery threshold to mirror failure threshold, got %d", cfg.Recovery())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netwatch.yaml")
	body := `
interval_seconds: 5
timeout_seconds: 1
failure_threshold: 2
recovery_threshold: 4
targets:
  - address: 9.9.9.9
  - id: web
    kind: HTTP
    address: https://example.com
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected file targets to replace defaults, got %d", len(cfg.Targets))
	}
	if cfg.Targets[0].ID != "9.9.9.9" || cfg.Targets[0].Kind != models.ProbeICMP {
		t.Errorf("expected id and kind defaults, got %+v", cfg.Targets[0])
	}
	if cfg.Targets[1].Kind != models.ProbeHTTP {
		t.Errorf("expected kind to be normalised, got %q", cfg.Targets[1].Kind)
	}
	if cfg.Recovery() != 4 {
		t.Errorf("expected recovery threshold 4, got %d", cfg.Recovery())
	}
	if cfg.LogDirectory != DefaultLogDirectory {
		t.Errorf("expected default log directory, got %q", cfg.LogDirectory)
	}
}

func TestParse_WithoutTargetsKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("interval_seconds: 5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.IntervalSeconds != 5 {
		t.Errorf("expected interval 5, got %d", cfg.IntervalSeconds)
	}
	defaults := DefaultConfig().Targets
	if len(cfg.Targets) != len(defaults) {
		t.Fatalf("expected %d default targets, got %d", len(defaults), len(cfg.Targets))
	}
	for i := range defaults {
		if cfg.Targets[i] != defaults[i] {
			t.Errorf("target %d: expected %+v, got %+v", i, defaults[i], cfg.Targets[i])
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no targets", "targets: []", "at least one target"},
		{"zero threshold", "failure_threshold: 0\ntargets: [{address: 1.1.1.1}]", "failure_threshold"},
		{"zero interval", "interval_seconds: 0\ntargets: [{address: 1.1.1.1}]", "interval_seconds"},
		{"negative timeout", "timeout_seconds: -1\ntargets: [{address: 1.1.1.1}]", "timeout_seconds"},
		{"unknown kind", "targets: [{address: 1.1.1.1, kind: smoke}]", "unknown kind"},
		{"duplicate id", "targets: [{address: 1.1.1.1}, {address: 1.1.1.1}]", "duplicate"},
		{"only fallbacks", "targets: [{address: a.com, kind: dns, fallback: true}]", "non-fallback"},
		{"postgres without dsn", "postgres: {enabled: true}\ntargets: [{address: 1.1.1.1}]", "postgres.dsn"},
		{"bad yaml", "targets: [", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
