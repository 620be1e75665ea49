package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, gotPath, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotPath != path {
		t.Fatalf("resolved path %q, want %q", gotPath, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	defaults := Default()
	if cfg.Addr != defaults.Addr || cfg.PresenceGrace != defaults.PresenceGrace {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
addr: ":9999"
log_level: debug
presence_grace: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q", cfg.LogLevel)
	}
	if cfg.PresenceGrace != 10*time.Second {
		t.Fatalf("presence_grace = %v", cfg.PresenceGrace)
	}

	// Values not present in the file keep their defaults.
	if cfg.DatabasePath != Default().DatabasePath {
		t.Fatalf("database_path = %q", cfg.DatabasePath)
	}
}
