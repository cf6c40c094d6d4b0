// Package httpapi is the HTTP surface over the engine: JSON endpoints for
// registration, login, refresh rotation, logout, revocation, and account
// operations, plus a health probe. Refresh tokens travel in an HttpOnly
// cookie; access tokens travel in the response body and the Authorization
// header on the way back in.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	auth "github.com/mshaik15/Backend-firebase-auth"
	"github.com/mshaik15/Backend-firebase-auth/middleware"
)

// Handler owns the route table. Build one with NewHandler and mount
// Router() on the server.
type Handler struct {
	engine         *auth.Engine
	log            *slog.Logger
	secureCookies  bool
	sameSite       http.SameSite
	allowedOrigins []string
}

// Options tunes transport behavior that the engine does not own.
type Options struct {
	Logger        *slog.Logger
	SecureCookies bool
	SameSite      http.SameSite
	// AllowedOrigins enables CORS for the listed origins. Empty means no
	// cross-origin browser access.
	AllowedOrigins []string
}

func NewHandler(engine *auth.Engine, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &Handler{
		engine:         engine,
		log:            opts.Logger,
		secureCookies:  opts.SecureCookies,
		sameSite:       opts.SameSite,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// Router builds the route table. Every route sits behind the global rate
// class; credential-bearing routes additionally consume the auth class.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	if len(h.allowedOrigins) > 0 {
		r.Use(middleware.CORS(h.allowedOrigins))
		// Preflight requests must match a route for middleware to run.
		r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {},
		)
	}
	r.Use(middleware.ClientContext)
	r.Use(middleware.RateLimit(h.engine, "global"))

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	a := r.PathPrefix("/auth").Subrouter()

	tight := a.NewRoute().Subrouter()
	tight.Use(middleware.RateLimit(h.engine, "auth"))
	tight.HandleFunc("/register", h.register).Methods(http.MethodPost)
	tight.HandleFunc("/login", h.login).Methods(http.MethodPost)
	tight.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost)
	tight.HandleFunc("/password-reset", h.passwordReset).Methods(http.MethodPost)

	a.HandleFunc("/logout", h.logout).Methods(http.MethodPost)

	guarded := a.NewRoute().Subrouter()
	guarded.Use(middleware.Guard(h.engine))
	guarded.HandleFunc("/profile", h.profile).Methods(http.MethodGet)
	guarded.HandleFunc("/verify-email", h.verifyEmail).Methods(http.MethodPost)
	guarded.HandleFunc("/revoke-all", h.revokeAll).Methods(http.MethodPost)
	guarded.HandleFunc("/account", h.deleteAccount).Methods(http.MethodDelete)

	return r
}
