package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAbsentFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "" || cfg.MaxConcurrentAccessors != 0 {
		t.Errorf("expected zero-value config, got %+v", cfg)
	}
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usersites.yaml")
	contents := "log_level: debug\nlog_format: json\nmax_concurrent_accessors: 100\nhysteresis_hold: 2s\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.MaxConcurrentAccessors != 100 {
		t.Errorf("MaxConcurrentAccessors = %d, want 100", cfg.MaxConcurrentAccessors)
	}
	if cfg.HysteresisHold != 2*time.Second {
		t.Errorf("HysteresisHold = %v, want 2s", cfg.HysteresisHold)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usersites.yaml")
	if err := os.WriteFile(path, []byte("log_level: verbose\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation to reject an unrecognized log_level")
	}
}

func TestLoadRejectsNegativeCacheSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usersites.yaml")
	if err := os.WriteFile(path, []byte("max_cache_file_bytes: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation to reject a negative cache size")
	}
}

func TestLoadNeverTouchesPortOrUpstream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usersites.yaml")
	// Port/Upstream have no yaml tag (yaml:"-"), so even a file that
	// names them should leave the zero value untouched.
	if err := os.WriteFile(path, []byte("port: 9999\nupstream: evil\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 0 || cfg.Upstream != "" {
		t.Errorf("expected Port/Upstream untouched, got %+v", cfg)
	}
}

func TestValidateAllowedVariableName(t *testing.T) {
	valid := []string{"name", "PATH_OVERRIDE", "_secret", "a1"}
	for _, v := range valid {
		if err := ValidateAllowedVariableName(v); err != nil {
			t.Errorf("ValidateAllowedVariableName(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "1leading", "has=equals", "has space", "dash-name"}
	for _, v := range invalid {
		if err := ValidateAllowedVariableName(v); err == nil {
			t.Errorf("ValidateAllowedVariableName(%q) = nil, want an error", v)
		}
	}
}
