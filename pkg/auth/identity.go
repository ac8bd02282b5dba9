// Package auth gates the HTTP surface: CORS, optional API keys, an IP
// whitelist and per-caller rate limiting. When no API keys are configured the
// service runs open, which is the expected mode for local demos.
package auth

import (
	"net/http"

	"animbridge/pkg/config"
)

// Role is the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleAdmin
)

// SecConfig drives authentication, CORS and rate limiting. Kept here so
// limiter.go and gateway.go share the type.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// Open reports whether the service runs without API keys.
func (c SecConfig) Open() bool {
	return len(c.FrontendKeys) == 0 && len(c.AdminKeys) == 0
}

// FromConfig builds a SecConfig from the loaded configuration.
func FromConfig(cfg *config.Config) SecConfig {
	toSet := func(keys []string) map[string]struct{} {
		if len(keys) == 0 {
			return nil
		}
		m := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			m[k] = struct{}{}
		}
		return m
	}
	return SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    cfg.Security.IPWhitelist,
		FrontendKeys:   toSet(cfg.Security.APIKeys.Frontend),
		AdminKeys:      toSet(cfg.Security.APIKeys.Admin),
	}
}

// RoleName returns the wire name of a role, as carried in X-Role-Name.
func RoleName(r Role) string {
	switch r {
	case RoleFrontend:
		return "frontend"
	case RoleAdmin:
		return "admin"
	}
	return "unauth"
}

// RequireAdmin blocks requests whose resolved role is not admin. It must run
// behind the gateway middleware that sets X-Role-Name. An open deployment
// (no keys at all) keeps admin routes reachable.
func RequireAdmin(cfg SecConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Open() && r.Header.Get("X-Role-Name") != "admin" {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
