package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires a valid, unrevoked bearer token and stores the
// Session in the request context.
func Middleware(issuer *Issuer, deny Denylist, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				fail(w, r, ErrNoToken)
				return
			}
			s, err := issuer.Verify(token)
			if err != nil {
				fail(w, r, err)
				return
			}
			if deny != nil {
				revoked, err := deny.IsRevoked(r.Context(), s.TokenID)
				if err != nil {
					// Fail closed: a token we cannot check is treated as invalid.
					slog.ErrorContext(r.Context(), "Revocation check failed", "error", err)
					fail(w, r, ErrInvalidToken)
					return
				}
				if revoked {
					fail(w, r, ErrInvalidToken)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
