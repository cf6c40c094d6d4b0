package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	auth "github.com/mshaik15/Backend-firebase-auth"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	})
}

// respondEngineError maps engine sentinels onto HTTP statuses and stable
// error codes. Credential failures stay deliberately vague.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidationError):
		respondError(w, http.StatusBadRequest, "invalid_request", "request is malformed")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, auth.ErrTokenExpired):
		respondError(w, http.StatusUnauthorized, "token_expired", "token has expired")
	case errors.Is(err, auth.ErrReplayDetected):
		respondError(w, http.StatusUnauthorized, "replay_detected", "refresh token already used; session revoked")
	case errors.Is(err, auth.ErrTokenRevoked):
		respondError(w, http.StatusUnauthorized, "token_revoked", "token has been revoked")
	case errors.Is(err, auth.ErrSessionRevoked):
		respondError(w, http.StatusUnauthorized, "session_revoked", "session has been revoked")
	case errors.Is(err, auth.ErrSessionNotFound):
		respondError(w, http.StatusUnauthorized, "session_not_found", "session does not exist")
	case errors.Is(err, auth.ErrTokenInvalid):
		respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
	case errors.Is(err, auth.ErrAccountExists):
		respondError(w, http.StatusConflict, "account_exists", "an account with this email already exists")
	case errors.Is(err, auth.ErrRateLimited):
		if retryAfter, ok := auth.RetryAfter(err); ok {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts; slow down")
	case errors.Is(err, auth.ErrProviderUnavailable),
		errors.Is(err, auth.ErrStoreUnavailable),
		errors.Is(err, auth.ErrSigningError):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "temporarily unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is malformed")
		return false
	}
	return true
}
