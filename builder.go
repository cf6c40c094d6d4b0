package auth

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mshaik15/Backend-firebase-auth/internal/rate"
	"github.com/mshaik15/Backend-firebase-auth/jwt"
	"github.com/mshaik15/Backend-firebase-auth/provider"
	"github.com/mshaik15/Backend-firebase-auth/session"
)

// Builder assembles an [Engine] from its dependencies. A builder is single
// use; Build fails on reuse.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	provider  provider.Client
	auditSink AuditSink

	built bool
}

// New returns a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider wires the identity provider client the engine delegates
// credential and subject operations to.
func (b *Builder) WithProvider(client provider.Client) *Builder {
	b.provider = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. The returned
// engine owns the audit dispatcher; call [Engine.Close] on shutdown.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("identity provider client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Keys:          cfg.JWT.Keys,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    cfg.JWT.RequireIAT,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt manager: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			Policies: map[rate.Class]rate.Policy{
				rate.ClassGlobal: {Max: cfg.RateLimit.Global.Max, Window: cfg.RateLimit.Global.Window},
				rate.ClassAuth:   {Max: cfg.RateLimit.Auth.Max, Window: cfg.RateLimit.Auth.Window},
			},
			TrustedKeys: cfg.RateLimit.TrustedKeys,
		})
	}

	b.built = true

	return &Engine{
		config:       cfg,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		rateLimiter:  limiter,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		jwtManager:   jwtManager,
		provider:     b.provider,
	}, nil
}
