package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// RESTClient talks to an identity-toolkit style HTTP API (accounts:signUp,
// accounts:signInWithPassword, accounts:lookup, accounts:update,
// accounts:delete, accounts:sendOobCode). It is a transport adapter only;
// all lifecycle policy lives in the engine.
type RESTClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRESTClient creates a [RESTClient]. baseURL is the provider endpoint
// without a trailing slash; apiKey is appended as the key query parameter.
func NewRESTClient(baseURL, apiKey string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type restAccount struct {
	LocalID      string          `json:"localId"`
	Email        string          `json:"email"`
	DisplayName  string          `json:"displayName,omitempty"`
	CustomClaims json.RawMessage `json:"customAttributes,omitempty"`
	IDToken      string          `json:"idToken,omitempty"`
}

type restError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// VerifyCredentials implements [Client].
func (c *RESTClient) VerifyCredentials(ctx context.Context, email, password string) (*Subject, error) {
	var acct restAccount
	err := c.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": false,
	}, &acct)
	if err != nil {
		return nil, err
	}
	return c.lookupSubject(ctx, acct.LocalID)
}

// CreateSubject implements [Client].
func (c *RESTClient) CreateSubject(ctx context.Context, email, password, displayName string) (*Subject, error) {
	var acct restAccount
	err := c.post(ctx, "accounts:signUp", map[string]any{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}, &acct)
	if err != nil {
		return nil, err
	}
	return &Subject{
		ID:          acct.LocalID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Claims:      Claims{},
	}, nil
}

// GetSubject implements [Client].
func (c *RESTClient) GetSubject(ctx context.Context, subjectID string) (*Subject, error) {
	return c.lookupSubject(ctx, subjectID)
}

// MintAssertion implements [Client].
func (c *RESTClient) MintAssertion(ctx context.Context, subjectID string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "accounts:createAuthToken", map[string]any{"localId": subjectID}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// VerifyAssertion implements [Client].
func (c *RESTClient) VerifyAssertion(ctx context.Context, assertion string) (*Subject, error) {
	var out struct {
		Users []restAccount `json:"users"`
	}
	if err := c.post(ctx, "accounts:lookup", map[string]any{"idToken": assertion}, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, ErrSubjectNotFound
	}
	return subjectFromAccount(out.Users[0])
}

// SetClaims implements [Client].
func (c *RESTClient) SetClaims(ctx context.Context, subjectID string, claims Claims) error {
	encoded, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("%w: encode claims: %v", ErrUnavailable, err)
	}
	return c.post(ctx, "accounts:update", map[string]any{
		"localId":          subjectID,
		"customAttributes": string(encoded),
	}, nil)
}

// RevokeGrants implements [Client]. The toolkit API expresses grant
// revocation as resetting validSince on the account.
func (c *RESTClient) RevokeGrants(ctx context.Context, subjectID string) error {
	return c.post(ctx, "accounts:update", map[string]any{
		"localId":          subjectID,
		"validSince":       time.Now().Unix(),
		"revokeTokens":     true,
		"returnUserRecord": false,
	}, nil)
}

// SendPasswordReset implements [Client].
func (c *RESTClient) SendPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// SendEmailVerification implements [Client].
func (c *RESTClient) SendEmailVerification(ctx context.Context, assertion string) error {
	return c.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     assertion,
	}, nil)
}

// DeleteSubject implements [Client].
func (c *RESTClient) DeleteSubject(ctx context.Context, subjectID string) error {
	return c.post(ctx, "accounts:delete", map[string]any{"localId": subjectID}, nil)
}

func (c *RESTClient) lookupSubject(ctx context.Context, subjectID string) (*Subject, error) {
	var out struct {
		Users []restAccount `json:"users"`
	}
	if err := c.post(ctx, "accounts:lookup", map[string]any{"localId": []string{subjectID}}, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, ErrSubjectNotFound
	}
	return subjectFromAccount(out.Users[0])
}

func subjectFromAccount(acct restAccount) (*Subject, error) {
	claims := Claims{}
	if len(acct.CustomClaims) > 0 {
		// Claims arrive as a JSON string; tolerate a raw object too.
		var asString string
		if err := json.Unmarshal(acct.CustomClaims, &asString); err == nil {
			_ = json.Unmarshal([]byte(asString), &claims)
		} else {
			_ = json.Unmarshal(acct.CustomClaims, &claims)
		}
	}
	return &Subject{
		ID:          acct.LocalID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Claims:      claims,
	}, nil
}

func (c *RESTClient) post(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	url := c.baseURL + "/v1/" + method
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var perr restError
		_ = json.NewDecoder(resp.Body).Decode(&perr)
		return mapProviderError(perr.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func mapProviderError(message string) error {
	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return ErrSubjectExists
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "USER_NOT_FOUND"):
		return ErrSubjectNotFound
	case strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "INVALID_ID_TOKEN"),
		strings.HasPrefix(message, "TOKEN_EXPIRED"):
		return ErrInvalidCredentials
	default:
		// WEAK_PASSWORD, OPERATION_NOT_ALLOWED and future codes are
		// policy refusals, not credential failures.
		return fmt.Errorf("%w: %s", ErrRejected, message)
	}
}
