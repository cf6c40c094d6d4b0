package httpapi

import (
	"errors"
	"net/http"
	"time"

	auth "github.com/mshaik15/Backend-firebase-auth"
	"github.com/mshaik15/Backend-firebase-auth/provider"
)

type subjectPayload struct {
	ID          string         `json:"id"`
	Email       string         `json:"email,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
}

type tokenPayload struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token,omitempty"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func subjectToPayload(s *provider.Subject) *subjectPayload {
	if s == nil {
		return nil
	}
	return &subjectPayload{
		ID:          s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Claims:      s.Claims,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	data := struct {
		Subject *subjectPayload `json:"subject"`
		Tokens  *tokenPayload   `json:"tokens,omitempty"`
	}{Subject: subjectToPayload(result.Subject)}

	if result.Tokens != nil {
		h.setRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt)
		data.Tokens = &tokenPayload{
			AccessToken:     result.Tokens.AccessToken,
			RefreshToken:    result.Tokens.RefreshToken,
			AccessExpiresAt: result.Tokens.AccessExpiresAt,
		}
	}

	respondData(w, http.StatusCreated, data)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt)
	respondData(w, http.StatusOK, struct {
		Subject *subjectPayload `json:"subject"`
		Tokens  *tokenPayload   `json:"tokens"`
	}{
		Subject: subjectToPayload(result.Subject),
		Tokens: &tokenPayload{
			AccessToken:     result.Tokens.AccessToken,
			RefreshToken:    result.Tokens.RefreshToken,
			AccessExpiresAt: result.Tokens.AccessExpiresAt,
		},
	})
}

// refresh consumes the presented refresh token and rotates the session.
// Replay of a consumed token revokes the session and clears the cookie.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFromRequest(r)
	if !ok {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "refresh token required")
		return
	}

	tokens, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		// Only terminal rejections invalidate the client's copy. A rate
		// limit or store outage leaves a still-usable token behind.
		if terminalRefreshErr(err) {
			h.clearRefreshCookie(w)
		}
		respondEngineError(w, err)
		return
	}

	h.setRefreshCookie(w, tokens.RefreshToken, tokens.RefreshExpiresAt)
	respondData(w, http.StatusOK, &tokenPayload{
		AccessToken:     tokens.AccessToken,
		RefreshToken:    tokens.RefreshToken,
		AccessExpiresAt: tokens.AccessExpiresAt,
	})
}

// terminalRefreshErr reports whether a refresh failure means the presented
// token can never succeed again.
func terminalRefreshErr(err error) bool {
	return errors.Is(err, auth.ErrReplayDetected) ||
		errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrTokenInvalid) ||
		errors.Is(err, auth.ErrTokenExpired)
}

// logout is idempotent: a missing or malformed token still clears the
// cookie and reports success.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFromRequest(r)
	if ok {
		if err := h.engine.Logout(r.Context(), token); err != nil {
			h.log.Warn("logout failed", "err", err)
		}
	}

	h.clearRefreshCookie(w)
	respondData(w, http.StatusOK, struct{}{})
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, http.StatusOK, struct{}{})
}
