package httpapi

import (
	"net/http"

	"github.com/mshaik15/Backend-firebase-auth/middleware"
)

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
		return
	}

	subject, err := h.engine.Profile(r.Context(), identity.SubjectID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, http.StatusOK, struct {
		Subject *subjectPayload `json:"subject"`
	}{Subject: subjectToPayload(subject)})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
		return
	}

	if err := h.engine.RequestEmailVerification(r.Context(), identity.SubjectID); err != nil {
		respondEngineError(w, err)
		return
	}

	respondData(w, http.StatusOK, struct{}{})
}

// revokeAll kills every session the caller owns, including the one behind
// the presented access token once its short TTL runs out.
func (h *Handler) revokeAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
		return
	}

	if err := h.engine.RevokeAll(r.Context(), identity.SubjectID); err != nil {
		respondEngineError(w, err)
		return
	}

	h.clearRefreshCookie(w)
	respondData(w, http.StatusOK, struct{}{})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
		return
	}

	if err := h.engine.DeleteAccount(r.Context(), identity.SubjectID); err != nil {
		respondEngineError(w, err)
		return
	}

	h.clearRefreshCookie(w)
	respondData(w, http.StatusOK, struct{}{})
}
