package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
port: "9090"
env: production
utcOffsetMinutes: -360
accessTokenTtlMin: 5
refreshTokenTtlMin: 1440
rateRps: 2.5
rateBurst: 3
adminToken: hunter2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.Env != "production" {
		t.Fatalf("port/env = %q/%q", cfg.Port, cfg.Env)
	}
	if cfg.AccessTTL() != 5*time.Minute {
		t.Fatalf("AccessTTL = %v, want 5m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 24*time.Hour {
		t.Fatalf("RefreshTTL = %v, want 24h", cfg.RefreshTTL())
	}
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 3 {
		t.Fatalf("rate = %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.AdminToken != "hunter2" {
		t.Fatalf("adminToken = %q", cfg.AdminToken)
	}
	if cfg.IsDevelopment() {
		t.Fatal("production config reports development")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("env: production\naccessTokenTtlMin: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENV", "development")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "development" {
		t.Fatalf("env = %q, want development", cfg.Env)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
}

func TestLocationFixedOffset(t *testing.T) {
	cfg := &Config{UTCOffsetMinutes: -300}
	loc := cfg.Location()
	at := time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC).In(loc)
	if at.Hour() != 10 {
		t.Fatalf("hour = %d, want 10", at.Hour())
	}
}
