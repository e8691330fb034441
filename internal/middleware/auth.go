package middleware

import (
	"context"
	"net/http"
	"strings"

	"dealboard/internal/model"
	"dealboard/internal/service"
)

type principalResolver interface {
	ValidateAccessToken(tokenString string) (*model.AuthClaims, error)
	ResolvePrincipal(ctx context.Context, userID string) (model.Principal, error)
}

type authorizer interface {
	HasCapability(principal model.Principal, capability service.Capability) bool
	MeetsMinimum(principal model.Principal, required model.DashboardTier) bool
}

type contextKey string

const principalContextKey contextKey = "principal"

type AuthMiddleware struct {
	resolver principalResolver
	authz    authorizer
}

func NewAuthMiddleware(resolver principalResolver, authz authorizer) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver, authz: authz}
}

// RequireAuth validates the bearer access token and attaches the resolved
// principal to the request context. Resolution pulls the user's current
// role, so a reassignment takes effect on the next request, not the next
// login.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimSpace(header[7:])
		claims, err := m.resolver.ValidateAccessToken(token)
		if err != nil {
			writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		principal, err := m.resolver.ResolvePrincipal(r.Context(), claims.UserID)
		if err != nil {
			writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "account is not available")
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on one permission-matrix capability.
// Must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(capability service.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if !m.authz.HasCapability(principal, capability) {
				writeDenied(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTier gates a route on a minimum dashboard tier. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireTier(required model.DashboardTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if !m.authz.MeetsMinimum(principal, required) {
				writeDenied(w, http.StatusForbidden, "FORBIDDEN", "insufficient dashboard access")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}

func writeDenied(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
