package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	auth "github.com/mshaik15/Backend-firebase-auth"
	"github.com/mshaik15/Backend-firebase-auth/httpapi"
	"github.com/mshaik15/Backend-firebase-auth/jwt"
	"github.com/mshaik15/Backend-firebase-auth/metrics/export/prometheus"
	"github.com/mshaik15/Backend-firebase-auth/provider"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	addr := getEnv("LISTEN_ADDR", ":8080")
	production := getEnv("ENVIRONMENT", "development") == "production"

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
	})
	defer redisClient.Close()

	keys, closeKeys, err := buildKeySource()
	if err != nil {
		return err
	}
	defer closeKeys()

	cfg := auth.Config{
		JWT: auth.JWTConfig{
			AccessTTL:     getEnvAsDuration("ACCESS_TTL", 15*time.Minute),
			SigningMethod: getEnv("SIGNING_METHOD", "hs256"),
			Keys:          keys,
			Issuer:        getEnv("JWT_ISSUER", "authd"),
			Audience:      getEnv("JWT_AUDIENCE", ""),
			Leeway:        30 * time.Second,
		},
		Session: auth.SessionConfig{
			RedisPrefix:           getEnv("REDIS_PREFIX", "sa"),
			RefreshTTL:            getEnvAsDuration("REFRESH_TTL", 30*24*time.Hour),
			EnableRevocationCheck: getEnv("ENABLE_REVOCATION_CHECK", "false") == "true",
		},
		RateLimit: auth.RateLimitConfig{
			Enabled:     true,
			Global:      auth.RatePolicy{Max: getEnvAsInt("RATE_GLOBAL_MAX", 300), Window: time.Minute},
			Auth:        auth.RatePolicy{Max: getEnvAsInt("RATE_AUTH_MAX", 10), Window: time.Minute},
			TrustedKeys: splitNonEmpty(getEnv("RATE_TRUSTED_KEYS", "")),
		},
		Account: auth.AccountConfig{
			AutoLogin:         true,
			MinPasswordLength: getEnvAsInt("MIN_PASSWORD_LENGTH", 8),
		},
		Audit: auth.AuditConfig{
			Enabled:    true,
			BufferSize: 512,
			DropIfFull: true,
		},
		Metrics: auth.MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Security: auth.SecurityConfig{
			ProductionMode:       production,
			RequireSecureCookies: production,
			SameSitePolicy:       http.SameSiteLaxMode,
		},
	}

	idp := provider.NewRESTClient(
		getEnv("PROVIDER_BASE_URL", ""),
		getEnv("PROVIDER_API_KEY", ""),
		&http.Client{Timeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second)},
	)

	engine, err := auth.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithProvider(idp).
		WithAuditSink(auth.NewSlogSink(logger)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	handler := httpapi.NewHandler(engine, httpapi.Options{
		Logger:         logger,
		SecureCookies:  cfg.Security.RequireSecureCookies,
		SameSite:       cfg.Security.SameSitePolicy,
		AllowedOrigins: splitNonEmpty(getEnv("CORS_ORIGINS", "")),
	})

	// The scrape endpoint sits outside the API router so it is never rate
	// limited or CORS gated.
	root := http.NewServeMux()
	root.Handle("/", handler.Router())
	if cfg.Metrics.Enabled {
		root.Handle("/metrics", prometheus.NewExporter(engine).Handler())
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
	}

	return nil
}

// buildKeySource prefers key files (hot-reloadable) and falls back to an
// in-memory secret from the environment.
func buildKeySource() (jwt.KeySource, func(), error) {
	keyID := getEnv("JWT_KEY_ID", "k1")

	if privatePath := getEnv("JWT_PRIVATE_KEY_FILE", ""); privatePath != "" {
		fk, err := jwt.NewFileKeys(keyID, privatePath, getEnv("JWT_PUBLIC_KEY_FILE", ""))
		if err != nil {
			return nil, nil, err
		}
		return fk, func() { _ = fk.Close() }, nil
	}

	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		return nil, nil, errors.New("JWT_SECRET or JWT_PRIVATE_KEY_FILE required")
	}
	return &jwt.StaticKeys{KeyID: keyID, Private: []byte(secret)}, func() {}, nil
}
