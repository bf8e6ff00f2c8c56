package auth

import (
	"context"
	"net/http"

	"gastos/internal/core"
)

// CookieName is the session cookie set on login.
const CookieName = "gastos_session"

type contextKey struct{}

// Middleware derives the caller identity from the session cookie and stores
// it in the request context. Requests without a valid session proceed as
// anonymous; individual handlers decide whether that is acceptable.
func Middleware(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := core.Anonymous
			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				if parsed, err := sessions.Parse(c.Value); err == nil {
					ident = parsed
				}
			}
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), ident)))
		})
	}
}

// IntoContext stores the identity in ctx.
func IntoContext(ctx context.Context, ident core.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// IdentityFromContext returns the caller identity, anonymous by default.
func IdentityFromContext(ctx context.Context) core.Identity {
	if ident, ok := ctx.Value(contextKey{}).(core.Identity); ok {
		return ident
	}
	return core.Anonymous
}
