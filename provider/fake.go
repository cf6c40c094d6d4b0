package provider

import (
	"context"
	"strconv"
	"sync"
)

// Fake is an in-memory [Client] for tests and local development. It applies
// the same error mapping contract as the REST adapter so engine behavior is
// identical against either.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	byEmail  map[string]*fakeRecord
	byID     map[string]*fakeRecord
	Down     bool // when true, every call fails with ErrUnavailable
	Verifies int  // count of VerifyCredentials calls, for call-gating tests
}

type fakeRecord struct {
	subject  Subject
	password string
	revoked  int
}

// NewFake creates an empty [Fake].
func NewFake() *Fake {
	return &Fake{
		byEmail: make(map[string]*fakeRecord),
		byID:    make(map[string]*fakeRecord),
	}
}

// Seed registers a subject with a password without going through
// CreateSubject validation.
func (f *Fake) Seed(email, password, displayName string, claims Claims) *Subject {
	f.mu.Lock()
	defer f.mu.Unlock()
	if claims == nil {
		claims = Claims{}
	}
	f.nextID++
	rec := &fakeRecord{
		subject: Subject{
			ID:          "sub-" + strconv.Itoa(f.nextID),
			Email:       email,
			DisplayName: displayName,
			Claims:      claims,
		},
		password: password,
	}
	f.byEmail[email] = rec
	f.byID[rec.subject.ID] = rec
	out := rec.subject
	return &out
}

// VerifyCredentials implements [Client].
func (f *Fake) VerifyCredentials(ctx context.Context, email, password string) (*Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Verifies++
	if f.Down {
		return nil, ErrUnavailable
	}
	rec, ok := f.byEmail[email]
	if !ok || rec.password != password {
		return nil, ErrInvalidCredentials
	}
	out := rec.subject
	return &out, nil
}

// CreateSubject implements [Client].
func (f *Fake) CreateSubject(ctx context.Context, email, password, displayName string) (*Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return nil, ErrUnavailable
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, ErrSubjectExists
	}
	f.nextID++
	rec := &fakeRecord{
		subject: Subject{
			ID:          "sub-" + strconv.Itoa(f.nextID),
			Email:       email,
			DisplayName: displayName,
			Claims:      Claims{},
		},
		password: password,
	}
	f.byEmail[email] = rec
	f.byID[rec.subject.ID] = rec
	out := rec.subject
	return &out, nil
}

// GetSubject implements [Client].
func (f *Fake) GetSubject(ctx context.Context, subjectID string) (*Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return nil, ErrUnavailable
	}
	rec, ok := f.byID[subjectID]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	out := rec.subject
	return &out, nil
}

// MintAssertion implements [Client]. Assertions are the subject id prefixed
// so VerifyAssertion can invert them; good enough for flow tests.
func (f *Fake) MintAssertion(ctx context.Context, subjectID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return "", ErrUnavailable
	}
	if _, ok := f.byID[subjectID]; !ok {
		return "", ErrSubjectNotFound
	}
	return "assert:" + subjectID, nil
}

// VerifyAssertion implements [Client].
func (f *Fake) VerifyAssertion(ctx context.Context, assertion string) (*Subject, error) {
	const prefix = "assert:"
	if len(assertion) <= len(prefix) || assertion[:len(prefix)] != prefix {
		return nil, ErrInvalidCredentials
	}
	return f.GetSubject(ctx, assertion[len(prefix):])
}

// SetClaims implements [Client].
func (f *Fake) SetClaims(ctx context.Context, subjectID string, claims Claims) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return ErrUnavailable
	}
	rec, ok := f.byID[subjectID]
	if !ok {
		return ErrSubjectNotFound
	}
	rec.subject.Claims = claims
	return nil
}

// RevokeGrants implements [Client].
func (f *Fake) RevokeGrants(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return ErrUnavailable
	}
	rec, ok := f.byID[subjectID]
	if !ok {
		return ErrSubjectNotFound
	}
	rec.revoked++
	return nil
}

// RevokedCount reports how many times RevokeGrants ran for the subject.
func (f *Fake) RevokedCount(subjectID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[subjectID]
	if !ok {
		return 0
	}
	return rec.revoked
}

// SendPasswordReset implements [Client]. Always succeeds for known and
// unknown emails alike, matching the anti-enumeration contract.
func (f *Fake) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return ErrUnavailable
	}
	return nil
}

// SendEmailVerification implements [Client].
func (f *Fake) SendEmailVerification(ctx context.Context, assertion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return ErrUnavailable
	}
	return nil
}

// DeleteSubject implements [Client].
func (f *Fake) DeleteSubject(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return ErrUnavailable
	}
	rec, ok := f.byID[subjectID]
	if !ok {
		return ErrSubjectNotFound
	}
	delete(f.byEmail, rec.subject.Email)
	delete(f.byID, subjectID)
	return nil
}
