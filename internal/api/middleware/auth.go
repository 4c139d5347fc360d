package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/service"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
)

// Auth authenticates the bearer token on every request and stores the
// resolved principal in the request context.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			principal, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrMissingToken):
					http.Error(w, "Access token required", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrTokenRevoked):
					http.Error(w, "Token has been revoked", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrTokenExpired):
					http.Error(w, "Token expired", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrInvalidToken):
					http.Error(w, "Invalid token", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrSessionNotFound):
					http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrUserInactive):
					http.Error(w, "User not found or inactive", http.StatusUnauthorized)
				default:
					log.Printf("ERROR [middleware.Auth] authentication failed: %v", err)
					http.Error(w, "Authentication failed", http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManageUsers rejects principals whose role lacks the
// user-management capability.
func RequireManageUsers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !principal.User.Role.CanManageUsers() {
			http.Error(w, "Insufficient role privileges", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPrincipal returns the authenticated principal stored by Auth.
func GetPrincipal(ctx context.Context) (*service.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(*service.Principal)
	return principal, ok
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
