package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOCQA_CONFIG_FILE", "DOCQA_BASE_URL", "DOCQA_LOG_LEVEL", "DOCQA_UPLOAD_TIMEOUT",
		"DOCQA_REQUEST_TIMEOUT", "DOCQA_POLL_INTERVAL", "DOCQA_REQUIRE_TARGET_COUNT",
		"DOCQA_RATE_LIMIT_RPS", "DOCQA_RATE_LIMIT_BURST", "DOCQA_BREAKER_ENABLED",
		"DOCQA_METRICS_ADDR", "DOCQA_NATS_URL", "DOCQA_NATS_SUBJECT", "DOCQA_WATCH_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.UploadTimeout != 15*time.Minute {
		t.Fatalf("expected upload timeout 15m, got %s", cfg.UploadTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected poll interval 2s, got %s", cfg.PollInterval)
	}
	if cfg.RequireTargetCount {
		t.Fatalf("expected completion heuristic enabled by default")
	}
	if !cfg.BreakerEnabled {
		t.Fatalf("expected breaker enabled by default")
	}
	if cfg.NATSSubject != "docqa.ingestion.phase" {
		t.Fatalf("expected default nats subject, got %q", cfg.NATSSubject)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCQA_BASE_URL", "https://qa.example.com")
	t.Setenv("DOCQA_POLL_INTERVAL", "1500ms")
	t.Setenv("DOCQA_REQUIRE_TARGET_COUNT", "true")
	t.Setenv("DOCQA_RATE_LIMIT_RPS", "2.5")
	t.Setenv("DOCQA_RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://qa.example.com" {
		t.Fatalf("expected base url override, got %q", cfg.BaseURL)
	}
	if cfg.PollInterval != 1500*time.Millisecond {
		t.Fatalf("expected poll interval 1.5s, got %s", cfg.PollInterval)
	}
	if !cfg.RequireTargetCount {
		t.Fatalf("expected require target override")
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 5 {
		t.Fatalf("expected invalid burst to fall back to 5, got %d", cfg.RateLimitBurst)
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	content := "base_url: http://backend:9000\npoll_interval: 500ms\nwatch_dir: /srv/inbox\nbreaker_enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DOCQA_CONFIG_FILE", path)
	t.Setenv("DOCQA_WATCH_DIR", "/tmp/override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://backend:9000" {
		t.Fatalf("expected file base url, got %q", cfg.BaseURL)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("expected file poll interval, got %s", cfg.PollInterval)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected file to disable breaker")
	}
	if cfg.WatchDir != "/tmp/override" {
		t.Fatalf("expected env to win over file, got %q", cfg.WatchDir)
	}
	if cfg.UploadTimeout != 15*time.Minute {
		t.Fatalf("expected keys missing from file to keep defaults, got %s", cfg.UploadTimeout)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: [nope"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DOCQA_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"relative url":      func(c *Config) { c.BaseURL = "localhost:8000" },
		"zero poll":         func(c *Config) { c.PollInterval = 0 },
		"negative timeout":  func(c *Config) { c.RequestTimeout = -time.Second },
		"negative rps":      func(c *Config) { c.RateLimitRPS = -1 },
		"nats w/o subject":  func(c *Config) { c.NATSURL = "nats://localhost:4222"; c.NATSSubject = "" },
		"zero upload limit": func(c *Config) { c.UploadTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
