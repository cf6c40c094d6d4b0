package middleware

import (
	"context"
	"net/http"
	"strings"

	auth "github.com/mshaik15/Backend-firebase-auth"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity injected by [Guard].
func IdentityFromContext(ctx context.Context) (*auth.VerifyResult, bool) {
	res, ok := ctx.Value(identityContextKey{}).(*auth.VerifyResult)
	return res, ok
}

// Guard rejects requests without a valid bearer access token and injects
// the verified identity into the request context for downstream handlers.
func Guard(engine *auth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
