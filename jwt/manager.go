package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the access token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Curve25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds access token issuance and verification parameters. Configure
// once at startup and treat as immutable; key rotation happens through the
// [KeySource], not by mutating Config.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	Keys          KeySource
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
}

// Manager mints and parses access tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims is the access token payload. The subject rides in the
// registered "sub" claim; sid and gen bind the token to the session and
// generation it was minted under so revocation checks can use them without
// a session lookup.
type AccessClaims struct {
	SessionID  string         `json:"sid"`
	Generation uint32         `json:"gen"`
	Email      string         `json:"email,omitempty"`
	Name       string         `json:"name,omitempty"`
	Custom     map[string]any `json:"cst,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates the config and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Keys == nil {
		return nil, errors.New("key source required")
	}

	switch cfg.SigningMethod {
	case MethodHS256, MethodEd25519:
	default:
		return nil, errors.New("unsupported signing method")
	}

	// Exercise the key source once so a misconfigured key file fails fast.
	kid, key, err := cfg.Keys.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("key source: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("key source returned empty signing key")
	}
	m := &Manager{config: cfg}
	if cfg.SigningMethod == MethodEd25519 {
		if _, err := parseEdPrivateKey(key); err != nil {
			return nil, err
		}
		verifyKey, err := cfg.Keys.VerifyKey(kid)
		if err != nil {
			return nil, fmt.Errorf("key source: %w", err)
		}
		if _, err := parseEdPublicKey(verifyKey); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CreateAccess mints a signed access token for the subject bound to the
// given session and generation.
func (j *Manager) CreateAccess(
	subjectID string,
	sessionID string,
	generation uint32,
	email string,
	name string,
	custom map[string]any,
) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		SessionID:  sessionID,
		Generation: generation,
		Email:      email,
		Name:       name,
		Custom:     custom,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)

	kid, key, err := j.config.Keys.SigningKey()
	if err != nil {
		return "", err
	}
	if kid != "" {
		token.Header["kid"] = kid
	}

	signKey, err := j.keyBytesToSignKey(key)
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

// ParseAccess verifies signature, expiry, issuer and audience, and returns
// the claims. Expiry is checked before the caller ever sees claims; an
// expired token never yields a usable identity.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		kid, _ := t.Header["kid"].(string)
		key, err := j.config.Keys.VerifyKey(kid)
		if err != nil {
			return nil, err
		}
		return j.keyBytesToVerifyKey(key)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) keyBytesToSignKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPrivateKey(key)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
