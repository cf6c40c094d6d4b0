package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/mshaik15/Backend-firebase-auth/internal"
	"github.com/mshaik15/Backend-firebase-auth/internal/rate"
	"github.com/mshaik15/Backend-firebase-auth/jwt"
	"github.com/mshaik15/Backend-firebase-auth/provider"
	"github.com/mshaik15/Backend-firebase-auth/session"
)

// Engine is the session-token lifecycle coordinator. It owns no identity
// data; subjects and credentials live with the provider, session state
// lives in Redis, and the engine glues both behind token operations.
//
// All methods are safe for concurrent use.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	jwtManager   *jwt.Manager
	provider     provider.Client
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under load.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// RateLimiter exposes the engine's limiter for transport-level middleware
// so HTTP and engine checks share one budget. Nil when limiting is off.
func (e *Engine) RateLimiter() *rate.Limiter {
	if e == nil {
		return nil
	}
	return e.rateLimiter
}

// Ping reports session store reachability.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessionStore.Ping(ctx)
	if err != nil {
		return d, ErrStoreUnavailable
	}
	return d, nil
}

// Login verifies credentials against the provider and, on success, creates
// a fresh session and mints a token pair.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkAuthRate(ctx, "login", email); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrRateLimited, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return nil, err
	}

	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_credentials"}
		})
		return nil, ErrInvalidCredentials
	}

	subject, err := e.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(mapped, ErrProviderUnavailable) {
			e.metricInc(MetricProviderUnavailable)
		} else {
			e.metricInc(MetricLoginFailure)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", mapped, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return nil, mapped
	}

	tokens, sessionID, err := e.createSession(ctx, subject)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, subject.ID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject.ID, sessionID, nil, func() map[string]string {
		m := map[string]string{}
		if ua := userAgentFromContext(ctx); ua != "" {
			m["user_agent"] = ua
		}
		return m
	})

	return &LoginResult{Subject: subject, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a
// new pair is minted. Presenting an already-consumed token tears the whole
// session down and returns [ErrReplayDetected].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sessionID, generation, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "malformed_token"}
		})
		return nil, ErrTokenInvalid
	}

	if err := e.checkAuthRate(ctx, "refresh", sessionID); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrRateLimited, nil)
		return nil, err
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, errors.Join(ErrSigningError, err)
	}

	sess, err := e.sessionStore.Rotate(
		ctx,
		sessionID,
		generation,
		internal.HashRefreshSecret(secret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		mapped := mapRotateErr(err)
		switch {
		case errors.Is(mapped, ErrReplayDetected):
			e.metricInc(MetricReplayDetected)
			e.emitAudit(ctx, auditEventRefreshReplayDetected, false, "", sessionID, mapped, func() map[string]string {
				return map[string]string{"presented_generation": uitoa(generation)}
			})
		case errors.Is(mapped, ErrStoreUnavailable):
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, mapped, nil)
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, mapped, nil)
		}
		return nil, mapped
	}

	// Claims are refreshed best effort. A provider blip must not block
	// rotation; the access token then carries identity only.
	var email, name string
	var custom map[string]any
	if subject, err := e.provider.GetSubject(ctx, sess.SubjectID); err == nil {
		email = subject.Email
		name = subject.DisplayName
		custom = subject.Claims
	}

	now := time.Now()
	access, err := e.jwtManager.CreateAccess(sess.SubjectID, sessionID, sess.Generation, email, name, custom)
	if err != nil {
		return nil, errors.Join(ErrSigningError, err)
	}
	refresh, err := internal.EncodeRefreshToken(sessionID, sess.Generation, nextSecret)
	if err != nil {
		return nil, errors.Join(ErrSigningError, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.SubjectID, sessionID, nil, func() map[string]string {
		return map[string]string{"generation": uitoa(sess.Generation)}
	})

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// Verify validates an access token. With the default configuration this is
// pure CPU work; EnableRevocationCheck adds a Redis round trip that makes
// session revocation bite before token expiry.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*VerifyResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if e.config.Session.EnableRevocationCheck {
		if err := e.checkRevocation(ctx, claims); err != nil {
			if errors.Is(err, ErrTokenRevoked) {
				e.metricInc(MetricTokenRevokedRejected)
				e.emitAudit(ctx, auditEventVerifyRevoked, false, claims.Subject, claims.SessionID, err, nil)
			} else {
				e.metricInc(MetricVerifyFailure)
			}
			return nil, err
		}
	}

	e.metricInc(MetricVerifySuccess)
	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	return &VerifyResult{
		SubjectID:  claims.Subject,
		SessionID:  claims.SessionID,
		Generation: claims.Generation,
		Email:      claims.Email,
		Name:       claims.Name,
		Custom:     claims.Custom,
	}, nil
}

// Logout revokes the session a refresh token belongs to. The token's
// secret is not verified; possession of the opaque token is not required
// to end one's own session, only its id. Idempotent.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	sessionID, _, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}

	if err := e.sessionStore.Revoke(ctx, sessionID); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return ErrStoreUnavailable
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// RevokeAll invalidates every session belonging to the subject in O(1) by
// advancing the subject's generation floor, then best-effort revokes the
// provider's own grants. Sessions created after the call are unaffected.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if subjectID == "" {
		return ErrValidationError
	}

	floor, err := e.sessionStore.RevokeAllForSubject(ctx, subjectID, e.config.Session.RefreshTTL)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return ErrStoreUnavailable
	}

	providerRevoked := true
	if err := e.provider.RevokeGrants(ctx, subjectID); err != nil {
		providerRevoked = false
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, subjectID, "", nil, func() map[string]string {
		m := map[string]string{"floor": u64toa(floor)}
		if !providerRevoked {
			m["provider_revoke"] = "failed"
		}
		return m
	})
	return nil
}

// createSession mints a fresh session for a provider-verified subject and
// returns the token pair plus the session id.
func (e *Engine) createSession(ctx context.Context, subject *provider.Subject) (*TokenPair, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, "", errors.Join(ErrSigningError, err)
	}
	sessionID := sid.String()

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, "", errors.Join(ErrSigningError, err)
	}

	// The floor is captured at creation time. A later RevokeAll bumps the
	// floor past this epoch and the session dies on its next rotation.
	floor, err := e.sessionStore.SubjectFloor(ctx, subject.ID)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, "", ErrStoreUnavailable
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:     sessionID,
		SubjectID:     subject.ID,
		Generation:    1,
		SubjectEpoch:  floor,
		RefreshHash:   internal.HashRefreshSecret(secret),
		CreatedAt:     now.Unix(),
		LastRotatedAt: now.Unix(),
		ExpiresAt:     now.Add(e.config.Session.RefreshTTL).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.RefreshTTL); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return nil, "", ErrStoreUnavailable
	}

	access, err := e.jwtManager.CreateAccess(
		subject.ID, sessionID, sess.Generation,
		subject.Email, subject.DisplayName, subject.Claims,
	)
	if err != nil {
		return nil, "", errors.Join(ErrSigningError, err)
	}
	refresh, err := internal.EncodeRefreshToken(sessionID, sess.Generation, secret)
	if err != nil {
		return nil, "", errors.Join(ErrSigningError, err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, sessionID, nil
}

// checkRevocation enforces session liveness for an otherwise valid access
// token. Fail closed: an unreachable store rejects the token.
func (e *Engine) checkRevocation(ctx context.Context, claims *jwt.AccessClaims) error {
	sess, err := e.sessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrTokenRevoked
		}
		return ErrStoreUnavailable
	}
	if sess.Revoked {
		return ErrTokenRevoked
	}

	floor, err := e.sessionStore.SubjectFloor(ctx, sess.SubjectID)
	if err != nil {
		return ErrStoreUnavailable
	}
	if sess.SubjectEpoch < floor {
		return ErrTokenRevoked
	}
	return nil
}

// checkAuthRate consumes from the tight auth-class budget, keyed by both
// the operation-specific identifier and the client IP when present.
func (e *Engine) checkAuthRate(ctx context.Context, op, identifier string) error {
	if e.rateLimiter == nil {
		return nil
	}

	keys := []string{op + ":" + identifier}
	if ip := clientIPFromContext(ctx); ip != "" {
		keys = append(keys, op+":ip:"+ip)
	}

	for _, key := range keys {
		retryAfter, err := e.rateLimiter.Check(ctx, rate.ClassAuth, key)
		if err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitRateLimit(ctx, op, func() map[string]string {
					return map[string]string{"key": key}
				})
				return rateLimited(retryAfter)
			}
			e.metricInc(MetricStoreUnavailable)
			return ErrStoreUnavailable
		}
	}
	return nil
}

func mapProviderErr(err error) error {
	switch {
	case errors.Is(err, provider.ErrInvalidCredentials),
		errors.Is(err, provider.ErrSubjectNotFound):
		return ErrInvalidCredentials
	case errors.Is(err, provider.ErrSubjectExists):
		return ErrAccountExists
	case errors.Is(err, provider.ErrRejected):
		return ErrValidationError
	case errors.Is(err, provider.ErrUnavailable):
		return ErrProviderUnavailable
	default:
		return ErrProviderUnavailable
	}
}

func mapRotateErr(err error) error {
	switch {
	case errors.Is(err, session.ErrRotateMismatch):
		return ErrReplayDetected
	case errors.Is(err, session.ErrRotateSessionRevoked):
		return ErrSessionRevoked
	case errors.Is(err, session.ErrRotateSessionExpired):
		return ErrTokenExpired
	case errors.Is(err, session.ErrRotateSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrRecordCorrupt):
		return ErrSessionNotFound
	default:
		return ErrStoreUnavailable
	}
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func u64toa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
