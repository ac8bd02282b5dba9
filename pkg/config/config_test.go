package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/tmp/animbridge-db"
  max_body: "2MB"
backend:
  url: "https://anim-backend-abc123-uc.a.run.app"
  timeout: "90s"
  retry:
    max_attempts: 5
    initial_delay: "500ms"
    max_delay: "8s"
    backoff_factor: 2.0
stream:
  stage_interval: "3s"
security:
  cors:
    allowed_origins: ["https://app.example.com"]
  rate_limit:
    rps: 10
    burst: 20
retention:
  enabled: true
  cron: "0 3 * * *"
  max_age: "168h"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadParsesTypedFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("addr = %q", got)
	}
	if cfg.Server.MaxBody.Int64() != 2*1000*1000 {
		t.Errorf("max_body = %d", cfg.Server.MaxBody.Int64())
	}
	if cfg.Backend.Timeout.Duration() != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Backend.Timeout.Duration())
	}
	r := cfg.Backend.Retry
	if r.MaxAttempts != 5 || r.InitialDelay.Duration() != 500*time.Millisecond ||
		r.MaxDelay.Duration() != 8*time.Second || r.BackoffFactor != 2.0 {
		t.Errorf("retry = %+v", r)
	}
	if cfg.Stream.StageInterval.Duration() != 3*time.Second {
		t.Errorf("stage_interval = %v", cfg.Stream.StageInterval.Duration())
	}
	if cfg.Retention.MaxAge.Duration() != 168*time.Hour {
		t.Errorf("max_age = %v", cfg.Retention.MaxAge.Duration())
	}
}

func TestDurationAcceptsNumericSeconds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backend:\n  timeout: 30\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Timeout.Duration() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Backend.Timeout.Duration())
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("addr = %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ANIMBRIDGE_ADDR", "10.0.0.1:9999")
	t.Setenv("ANIMBRIDGE_BACKEND_AUDIENCE", "https://aud.example.com")
	t.Setenv("ANIMBRIDGE_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ANIMBRIDGE_RATE_RPS", "2.5")

	var cfg Config
	if !LoadEnvOverrides(&cfg) {
		t.Fatal("env overrides not detected")
	}
	if got := cfg.Addr(); got != "10.0.0.1:9999" {
		t.Errorf("addr = %q", got)
	}
	if cfg.Backend.Audience != "https://aud.example.com" {
		t.Errorf("audience = %q", cfg.Backend.Audience)
	}
	if len(cfg.Security.CORS.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.Security.CORS.AllowedOrigins)
	}
	if cfg.Security.RateLimit.RPS != 2.5 {
		t.Errorf("rps = %v", cfg.Security.RateLimit.RPS)
	}
}

func TestBackendURLPrecedence(t *testing.T) {
	t.Setenv("BACKEND_SERVICE_URL", "https://deploy.example.com")
	var cfg Config
	LoadEnvOverrides(&cfg)
	if cfg.Backend.URL != "https://deploy.example.com" {
		t.Errorf("url = %q", cfg.Backend.URL)
	}

	t.Setenv("ANIMBRIDGE_BACKEND_URL", "https://explicit.example.com")
	var cfg2 Config
	LoadEnvOverrides(&cfg2)
	if cfg2.Backend.URL != "https://explicit.example.com" {
		t.Errorf("explicit override lost: %q", cfg2.Backend.URL)
	}
}

func TestLoadEffectiveMissingFileStillAppliesEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	cfg, envUsed, err := LoadEffective(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !envUsed {
		t.Error("env not marked as used")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}
