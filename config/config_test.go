package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContentDir != "content" {
		t.Errorf("ContentDir = %q, want default", cfg.ContentDir)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level = %v, want info", cfg.Level())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dungeonmind.yaml")
	data := "content_dir: data/defs\nlog_level: debug\ntick_limit: 500\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DUNGEONMIND_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContentDir != "data/defs" {
		t.Errorf("ContentDir = %q, want file value", cfg.ContentDir)
	}
	if cfg.TickLimit != 500 {
		t.Errorf("TickLimit = %d, want 500", cfg.TickLimit)
	}
	if cfg.Level() != slog.LevelError {
		t.Errorf("Level = %v, env override should win", cfg.Level())
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("content_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
