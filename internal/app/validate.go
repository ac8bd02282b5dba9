package app

import (
	"fmt"
	"os"

	"animbridge/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if p := cfg.Server.Port; p < 0 || p > 65535 {
		return fmt.Errorf("invalid server port: %d", p)
	}

	if cfg.Retention.Enabled && cfg.Retention.MaxAge.Duration() <= 0 {
		return fmt.Errorf("retention enabled but retention.max_age is not set")
	}

	r := cfg.Backend.Retry
	if r.MaxAttempts < 0 {
		return fmt.Errorf("backend.retry.max_attempts must not be negative")
	}
	if r.BackoffFactor < 0 {
		return fmt.Errorf("backend.retry.backoff_factor must not be negative")
	}
	if r.MaxDelay.Duration() > 0 && r.InitialDelay.Duration() > r.MaxDelay.Duration() {
		return fmt.Errorf("backend.retry.initial_delay exceeds max_delay")
	}

	return nil
}
