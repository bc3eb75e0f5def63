package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/logging"
)

// clearEnv blanks every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"YELP_API_KEY", "YELP_BASE_URL", "YELP_USER_AGENT", "YELP_RATE_LIMIT", "YELP_BURST",
		"YELP_MAX_RETRIES", "YELP_TIMEOUT", "YELP_CACHE_TTL", "REDIS_URL", "DATABASE_URL",
		"DATABASE_SCHEMA", "DATABASE_MAX_CONNS", "DATABASE_VIA_BOUNCER", "LOG_LEVEL", "LOG_PRETTY",
		"METRICS_ADDR", "S3_BUCKET", "S3_PREFIX", "S3_REGION", "S3_ENDPOINT", "S3_USE_PATH_STYLE",
		"INGESTION_MAX_API_CALLS", "INGESTION_TARGET_COUNT_PER_AREA", "INGESTION_SEARCH_RADIUS",
		"INGESTION_PAGE_SIZE", "INGESTION_CATEGORY", "INGESTION_TRUST_TOTAL",
		"INGESTION_RESTAURANTS_PER_ZIP", "INGESTION_RADIUS_METERS", "INGESTION_BATCH_SIZE",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HasYelpKey() {
		t.Fatal("expected no yelp key by default")
	}
	if cfg.Yelp.BaseURL != "https://api.yelp.com" {
		t.Fatalf("expected default base url, got %q", cfg.Yelp.BaseURL)
	}
	if cfg.Yelp.Timeout != 30*time.Second || cfg.Yelp.CacheTTL != 24*time.Hour {
		t.Fatalf("unexpected durations: timeout=%v cache_ttl=%v", cfg.Yelp.Timeout, cfg.Yelp.CacheTTL)
	}
	if cfg.Database.Schema != "public" || cfg.Database.MaxConns != 2 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Logging.Level != logging.LevelInfo {
		t.Fatalf("expected info level, got %q", cfg.Logging.Level)
	}
	if cfg.ArchiveEnabled() {
		t.Fatal("expected archive disabled without bucket")
	}
	if len(cfg.Ingestion) != 0 {
		t.Fatalf("expected no ingestion overrides, got %v", cfg.Ingestion)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("YELP_API_KEY", " secret ")
	t.Setenv("DATABASE_URL", "postgres://ingest@localhost/zipbusiness")
	t.Setenv("YELP_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("INGESTION_MAX_API_CALLS", "120")
	t.Setenv("INGESTION_RESTAURANTS_PER_ZIP", "25")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Yelp.APIKey != "secret" {
		t.Fatalf("expected trimmed api key, got %q", cfg.Yelp.APIKey)
	}
	if cfg.Database.URL == "" {
		t.Fatal("expected DATABASE_URL to be read")
	}
	if cfg.Yelp.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.Yelp.Timeout)
	}
	if cfg.Logging.Level != logging.LevelDebug {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if !cfg.ArchiveEnabled() {
		t.Fatal("expected archive enabled")
	}

	settings, err := cfg.Settings(nil)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.MaxAPICalls != 120 || settings.TargetCountPerArea != 25 {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"log level", "LOG_LEVEL", "verbose"},
		{"rate limit", "YELP_RATE_LIMIT", "-1"},
		{"retries", "YELP_MAX_RETRIES", "-2"},
		{"non-numeric retries", "YELP_MAX_RETRIES", "many"},
		{"non-numeric rate limit", "YELP_RATE_LIMIT", "fast"},
		{"timeout", "YELP_TIMEOUT", "soon"},
		{"max conns", "DATABASE_MAX_CONNS", "two"},
		{"via bouncer", "DATABASE_VIA_BOUNCER", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestSettingsRejectsMalformedIngestionValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("INGESTION_MAX_API_CALLS", "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, err := cfg.Settings(nil); err == nil {
		t.Fatal("expected error for INGESTION_MAX_API_CALLS=abc")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "zip-ingest.yaml")
	content := `
yelp:
  user_agent: test-agent/2.0
  rate_limit: 2
ingestion:
  max_api_calls: 40
  page_size: 20
  trust_total: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INGESTION_MAX_API_CALLS", "60")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Yelp.UserAgent != "test-agent/2.0" || cfg.Yelp.RateLimit != 2 {
		t.Fatalf("unexpected yelp config: %+v", cfg.Yelp)
	}

	settings, err := cfg.Settings(map[string]any{"category": "pizza"})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.MaxAPICalls != 60 {
		t.Fatalf("expected env to override file, got %d", settings.MaxAPICalls)
	}
	if settings.PageSize != 20 || settings.TrustTotal {
		t.Fatalf("unexpected settings from file: %+v", settings)
	}
	if settings.Category != "pizza" {
		t.Fatalf("expected override category, got %q", settings.Category)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("YELP_API_KEY=from-dotenv\nREDIS_URL=redis://localhost:6379/0\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("REDIS_URL", "redis://override:6379/1")

	if err := LoadEnvFiles(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load env files: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Yelp.APIKey != "from-dotenv" {
		t.Fatalf("expected api key from .env, got %q", cfg.Yelp.APIKey)
	}
	if cfg.Redis.URL != "redis://override:6379/1" {
		t.Fatalf("expected existing env to win, got %q", cfg.Redis.URL)
	}
}
