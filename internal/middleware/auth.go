package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/viewfinder/internal/auth"
)

// TokenAuthorizer validates bearer tokens.
type TokenAuthorizer interface {
	Authorize(token, scope string) (*auth.Claims, error)
}

// RequireScope rejects requests without a bearer token carrying scope.
// The token subject is stored in the request context and handed to the
// access log. metrics may be nil.
func RequireScope(authorizer TokenAuthorizer, scope string, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				reject(w, r, metrics, "missing", http.StatusUnauthorized, "auth_failed", "Missing bearer token")
				return
			}

			claims, err := authorizer.Authorize(token, scope)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				reject(w, r, metrics, "expired", http.StatusUnauthorized, "auth_failed", "Token has expired")
				return
			case errors.Is(err, auth.ErrInsufficientScope):
				reject(w, r, metrics, "scope", http.StatusForbidden, "forbidden", "Token lacks the required scope")
				return
			case err != nil:
				reject(w, r, metrics, "invalid", http.StatusUnauthorized, "auth_failed", "Invalid token")
				return
			}

			ctx := SetSubject(r.Context(), claims.Subject)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, metrics *Metrics, reason string, status int, code, message string) {
	if metrics != nil {
		metrics.IncAuthFailures(reason)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="viewfinder"`)
	}
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	writeJSONError(w, status, code, message)
}
