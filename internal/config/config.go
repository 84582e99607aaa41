package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`

	UploadTimeout  time.Duration `yaml:"upload_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`

	RequireTargetCount bool `yaml:"require_target_count"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	BreakerEnabled bool    `yaml:"breaker_enabled"`

	MetricsAddr string `yaml:"metrics_addr"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	WatchDir string `yaml:"watch_dir"`
}

func Defaults() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		LogLevel:       "info",
		UploadTimeout:  15 * time.Minute,
		RequestTimeout: 60 * time.Second,
		PollInterval:   2 * time.Second,
		RateLimitRPS:   5,
		RateLimitBurst: 5,
		BreakerEnabled: true,
		NATSSubject:    "docqa.ingestion.phase",
	}
}

// Load applies DOCQA_CONFIG_FILE over the defaults, then environment
// variables over both.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("DOCQA_CONFIG_FILE"); path != "" {
		fromFile, err := LoadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = fromFile
	}
	return applyEnv(cfg), nil
}

// LoadFile decodes a YAML file over base. Keys missing from the file keep
// their base value.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	return Config{
		BaseURL:  mustEnv("DOCQA_BASE_URL", cfg.BaseURL),
		LogLevel: mustEnv("DOCQA_LOG_LEVEL", cfg.LogLevel),

		UploadTimeout:  mustEnvDuration("DOCQA_UPLOAD_TIMEOUT", cfg.UploadTimeout),
		RequestTimeout: mustEnvDuration("DOCQA_REQUEST_TIMEOUT", cfg.RequestTimeout),
		PollInterval:   mustEnvDuration("DOCQA_POLL_INTERVAL", cfg.PollInterval),

		RequireTargetCount: mustEnvBool("DOCQA_REQUIRE_TARGET_COUNT", cfg.RequireTargetCount),

		RateLimitRPS:   mustEnvFloat("DOCQA_RATE_LIMIT_RPS", cfg.RateLimitRPS),
		RateLimitBurst: mustEnvInt("DOCQA_RATE_LIMIT_BURST", cfg.RateLimitBurst),
		BreakerEnabled: mustEnvBool("DOCQA_BREAKER_ENABLED", cfg.BreakerEnabled),

		MetricsAddr: mustEnv("DOCQA_METRICS_ADDR", cfg.MetricsAddr),

		NATSURL:     mustEnv("DOCQA_NATS_URL", cfg.NATSURL),
		NATSSubject: mustEnv("DOCQA_NATS_SUBJECT", cfg.NATSSubject),

		WatchDir: mustEnv("DOCQA_WATCH_DIR", cfg.WatchDir),
	}
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) url", c.BaseURL))
	}
	if c.UploadTimeout <= 0 {
		errs = append(errs, errors.New("upload timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		errs = append(errs, errors.New("nats subject is required when nats url is set"))
	}
	return errors.Join(errs...)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
