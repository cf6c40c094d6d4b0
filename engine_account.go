package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/mshaik15/Backend-firebase-auth/provider"
)

// Profile fetches the subject's current provider record.
func (e *Engine) Profile(ctx context.Context, subjectID string) (*provider.Subject, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, ErrValidationError
	}

	subject, err := e.provider.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, mapProviderErr(err)
	}
	return subject, nil
}

// RequestPasswordReset asks the provider to start its reset flow. The
// result never reveals whether the email is registered: unknown emails
// succeed silently.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := e.checkAuthRate(ctx, "reset", email); err != nil {
		return err
	}

	if err := e.provider.SendPasswordReset(ctx, email); err != nil {
		mapped := mapProviderErr(err)
		// Unknown emails report success so the endpoint cannot be used
		// to enumerate accounts.
		if !errors.Is(mapped, ErrInvalidCredentials) {
			e.metricInc(MetricProviderUnavailable)
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", mapped, nil)
			return mapped
		}
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, nil)
	return nil
}

// RequestEmailVerification asks the provider to send a verification
// message to the subject's address.
func (e *Engine) RequestEmailVerification(ctx context.Context, subjectID string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if subjectID == "" {
		return ErrValidationError
	}

	// The provider wants its own identity assertion, not our access token.
	assertion, err := e.provider.MintAssertion(ctx, subjectID)
	if err != nil {
		mapped := mapProviderErr(err)
		e.metricInc(MetricProviderUnavailable)
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, subjectID, "", mapped, nil)
		return mapped
	}
	if err := e.provider.SendEmailVerification(ctx, assertion); err != nil {
		mapped := mapProviderErr(err)
		e.metricInc(MetricProviderUnavailable)
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, subjectID, "", mapped, nil)
		return mapped
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, subjectID, "", nil, nil)
	return nil
}

// DeleteAccount revokes every session for the subject and then deletes the
// subject at the provider. Session teardown comes first so a provider
// failure cannot leave live tokens on a half-deleted account.
func (e *Engine) DeleteAccount(ctx context.Context, subjectID string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if subjectID == "" {
		return ErrValidationError
	}

	if err := e.RevokeAll(ctx, subjectID); err != nil {
		return err
	}

	if err := e.provider.DeleteSubject(ctx, subjectID); err != nil {
		mapped := mapProviderErr(err)
		e.metricInc(MetricProviderUnavailable)
		e.emitAudit(ctx, auditEventAccountDeleted, false, subjectID, "", mapped, nil)
		return mapped
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, subjectID, "", nil, nil)
	return nil
}
