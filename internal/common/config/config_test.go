package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "3000" || cfg.Environment != "development" {
		t.Errorf("server defaults = %+v", cfg)
	}
	if cfg.ReadTimeout != 10 || cfg.WriteTimeout != 300 || cfg.BodyLimit != 20*1024*1024 {
		t.Errorf("limits = %d/%d/%d", cfg.ReadTimeout, cfg.WriteTimeout, cfg.BodyLimit)
	}
	if cfg.BackendTimeout != 0 {
		t.Errorf("backend timeout = %d, want 0", cfg.BackendTimeout)
	}
	if cfg.SessionStore != SessionStoreMemory || cfg.PhaseMode != PhaseModeSequential {
		t.Errorf("store=%s mode=%s", cfg.SessionStore, cfg.PhaseMode)
	}
	if cfg.PhaseDwell != 2*time.Second {
		t.Errorf("phase dwell = %s", cfg.PhaseDwell)
	}
	if cfg.ArtifactTTL != 15*time.Minute || cfg.JobRetention != time.Minute || cfg.SweepInterval != time.Minute {
		t.Errorf("retention = %s/%s/%s", cfg.ArtifactTTL, cfg.JobRetention, cfg.SweepInterval)
	}
}

func TestLoadRejectsNegativeRetention(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ARTIFACT_TTL", "-1m")

	if _, err := Load(); err == nil {
		t.Fatal("negative ARTIFACT_TTL should be rejected")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: \"8080\"\nbackend_url: http://processor:9000\nphase_dwell: 500ms\nsession_store: sqlite\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "9090")
	t.Setenv("PHASE_MODE", "concurrent")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("env should override file, port = %s", cfg.Port)
	}
	if cfg.BackendURL != "http://processor:9000" || cfg.SessionStore != SessionStoreSQLite {
		t.Errorf("file values not loaded: %+v", cfg)
	}
	if cfg.PhaseDwell != 500*time.Millisecond || cfg.PhaseMode != PhaseModeConcurrent {
		t.Errorf("dwell=%s mode=%s", cfg.PhaseDwell, cfg.PhaseMode)
	}
	if !cfg.IsProduction() {
		t.Error("ENV=production should be production")
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SESSION_STORE", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown session store")
	}
}
