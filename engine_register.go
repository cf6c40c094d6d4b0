package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/mshaik15/Backend-firebase-auth/provider"
)

// Register creates a new subject with the identity provider. With
// AutoLogin enabled the new subject also gets a session and token pair,
// sparing the client an immediate follow-up login.
func (e *Engine) Register(ctx context.Context, email, password, displayName string) (*RegisterResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < e.config.Account.MinPasswordLength {
		return nil, errors.Join(ErrValidationError, errors.New("password too short"))
	}

	if err := e.checkAuthRate(ctx, "register", email); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrRateLimited, nil)
		return nil, err
	}

	subject, err := e.provider.CreateSubject(ctx, email, password, displayName)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(mapped, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", mapped, nil)
		} else {
			e.metricInc(MetricProviderUnavailable)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", mapped, nil)
		}
		return nil, mapped
	}

	if len(subject.Claims) == 0 {
		// New subjects start with the baseline role; elevation happens
		// through the provider's admin surface, never through this API.
		claims := provider.Claims{"role": "user"}
		if err := e.provider.SetClaims(ctx, subject.ID, claims); err == nil {
			subject.Claims = claims
		}
	}

	result := &RegisterResult{Subject: subject}

	if e.config.Account.AutoLogin {
		tokens, sessionID, err := e.createSession(ctx, subject)
		if err != nil {
			// The subject exists at the provider even though no session
			// could be created. The caller can still log in normally.
			e.emitAudit(ctx, auditEventRegisterSuccess, true, subject.ID, "", err, func() map[string]string {
				return map[string]string{"auto_login": "failed"}
			})
			e.metricInc(MetricRegisterSuccess)
			return result, nil
		}
		result.Tokens = tokens
		e.metricInc(MetricSessionCreated)
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, subject.ID, sessionID, nil, nil)
		return result, nil
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, subject.ID, "", nil, nil)
	return result, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.Join(ErrValidationError, errors.New("email required"))
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return errors.Join(ErrValidationError, errors.New("malformed email"))
	}
	return nil
}
