// Package provider defines the thin client boundary to the external identity
// provider that owns subjects, credentials, and custom claims. The engine
// consumes this interface; it never implements identity storage itself.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects an
	// email/password pair or an identity assertion.
	ErrInvalidCredentials = errors.New("provider rejected credentials")
	// ErrSubjectNotFound is returned when no subject exists for the given
	// id or email.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectExists is returned by CreateSubject for duplicate emails.
	ErrSubjectExists = errors.New("subject already exists")
	// ErrRejected is returned when the provider refuses a request for a
	// reason other than bad credentials, such as a weak password or a
	// disabled sign-in method. The wrapped message carries the code.
	ErrRejected = errors.New("provider rejected request")
	// ErrUnavailable is returned for transient provider failures
	// (network, 5xx). Callers surface it without retrying.
	ErrUnavailable = errors.New("provider unavailable")
)

// Subject is the provider-owned identity record referenced by sessions and
// tokens. Claims carries the provider's custom-claim payload; well-known
// shapes (role, permissions) are read through typed accessors and unknown
// fields pass through opaquely.
type Subject struct {
	ID          string
	Email       string
	DisplayName string
	Claims      Claims
}

// Claims is the loosely-typed custom-claim mapping attached to a subject.
type Claims map[string]any

// Role returns the "role" claim when present and string-typed.
func (c Claims) Role() (string, bool) {
	v, ok := c["role"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Permissions returns the "permissions" claim normalized to []string.
func (c Claims) Permissions() []string {
	v, ok := c["permissions"]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Client is the full surface the engine needs from the identity provider.
// Implementations must map transport failures to [ErrUnavailable] and
// rejections to [ErrInvalidCredentials] / [ErrSubjectNotFound] so the engine
// can classify without knowing the wire format.
type Client interface {
	// VerifyCredentials checks an email/password pair and returns the
	// verified subject.
	VerifyCredentials(ctx context.Context, email, password string) (*Subject, error)
	// CreateSubject registers a new subject with the provider.
	CreateSubject(ctx context.Context, email, password, displayName string) (*Subject, error)
	// GetSubject looks up a subject by its provider id.
	GetSubject(ctx context.Context, subjectID string) (*Subject, error)
	// MintAssertion produces a provider-signed identity assertion for the
	// subject (used for provider-side flows like email verification).
	MintAssertion(ctx context.Context, subjectID string) (string, error)
	// VerifyAssertion validates a provider-issued assertion and returns
	// the subject it asserts.
	VerifyAssertion(ctx context.Context, assertion string) (*Subject, error)
	// SetClaims replaces the subject's custom claims.
	SetClaims(ctx context.Context, subjectID string, claims Claims) error
	// RevokeGrants invalidates all provider-issued grants for the subject.
	RevokeGrants(ctx context.Context, subjectID string) error
	// SendPasswordReset asks the provider to start its password-reset
	// flow for the email. Unknown emails must not be distinguishable.
	SendPasswordReset(ctx context.Context, email string) error
	// SendEmailVerification asks the provider to send a verification
	// message for the asserted subject.
	SendEmailVerification(ctx context.Context, assertion string) error
	// DeleteSubject removes the subject from the provider.
	DeleteSubject(ctx context.Context, subjectID string) error
}
