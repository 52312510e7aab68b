package middleware

import (
	"context"
	"net/http"
	"strings"

	"roomsync/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// Auth resolves the bearer token to a principal and stores it on the
// request context. Websocket upgrades may carry the token in the "token"
// query parameter instead, since browsers cannot set headers there.
func Auth(resolver domain.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// GetPrincipal returns the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*domain.Principal)
	return principal, ok
}

// WithPrincipal stores the principal on the context; used by Auth and by
// handler tests.
func WithPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}
