package middleware

import (
	"context"
	"net/http"
	"strings"

	"poimap-server/models"
	"poimap-server/services"
	"poimap-server/utils/errors"
)

// Authenticator resolves a bearer token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// AuthMiddleware attaches the caller to the request context. Requests without
// a token continue as visitors; a bad token is rejected outright.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			principal, err := auth.Authenticate(r.Context(), tokenString)
			if err != nil {
				WriteError(w, err)
				return
			}
			ctx := services.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole stops requests whose caller does not have role.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := services.PrincipalFromContext(r.Context())
			if !p.IsAuthenticated() {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			if p.Role != role {
				WriteError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
