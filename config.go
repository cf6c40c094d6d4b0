package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/mshaik15/Backend-firebase-auth/jwt"
)

// Config is the full engine configuration. Zero values are filled from
// defaultConfig by the builder; Validate rejects inconsistent combinations
// before the engine is built.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Account   AccountConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Keys          jwt.KeySource
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
	// RefreshTTL is the absolute session lifetime. A session is never
	// extended past login time plus RefreshTTL, however often it rotates.
	RefreshTTL time.Duration
	// EnableRevocationCheck makes Verify consult the session store, so a
	// revoked session kills still-unexpired access tokens at the cost of
	// a Redis round trip per verification.
	EnableRevocationCheck bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy is a fixed-window budget for one policy class.
type RatePolicy struct {
	Max    int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	// Global is the broad per-client budget. Auth is the tight budget for
	// credential-bearing operations; both budgets apply to those.
	Global RatePolicy
	Auth   RatePolicy
	// TrustedKeys bypass limiting (health probes, internal callers).
	TrustedKeys []string
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

type AccountConfig struct {
	// AutoLogin makes Register mint a token pair for the new subject.
	AutoLogin bool
	// MinPasswordLength is enforced before the provider is contacted.
	MinPasswordLength int
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode       bool
	RequireSecureCookies bool
	SameSitePolicy       http.SameSite
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "sa",
			RefreshTTL:  30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Global:  RatePolicy{Max: 300, Window: time.Minute},
			Auth:    RatePolicy{Max: 10, Window: time.Minute},
		},
		Account: AccountConfig{
			AutoLogin:         true,
			MinPasswordLength: 8,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteLaxMode,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.RateLimit.TrustedKeys = append([]string(nil), cfg.RateLimit.TrustedKeys...)
	return out
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session.RefreshTTL must be positive")
	}
	if c.JWT.AccessTTL >= c.Session.RefreshTTL {
		return errors.New("JWT.AccessTTL must be shorter than Session.RefreshTTL")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}

	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if c.JWT.Keys == nil {
		return errors.New("JWT.Keys key source required")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Global.Max <= 0 || c.RateLimit.Global.Window <= 0 {
			return errors.New("RateLimit.Global policy must have positive max and window")
		}
		if c.RateLimit.Auth.Max <= 0 || c.RateLimit.Auth.Window <= 0 {
			return errors.New("RateLimit.Auth policy must have positive max and window")
		}
	}

	if c.Account.MinPasswordLength < 6 {
		return errors.New("Account.MinPasswordLength must be at least 6")
	}

	if c.Security.ProductionMode {
		if !c.Security.RequireSecureCookies {
			return errors.New("production mode requires secure cookies")
		}
		if !c.RateLimit.Enabled {
			return errors.New("production mode requires rate limiting")
		}
		if !c.Audit.Enabled {
			return errors.New("production mode requires audit logging")
		}
	}

	return nil
}
