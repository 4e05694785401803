package middleware

import (
	"context"
	"net/http"

	"github.com/prometric-ai/prometric/internal/api"
	"github.com/prometric-ai/prometric/internal/domain"
)

type contextKey string

const (
	OrgIDKey  contextKey = "org_id"
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
)

// Identity extracts the caller's tenant identity from trusted gateway
// headers. The API sits behind a gateway that has already authenticated the
// user; this service only enforces tenancy and role policy.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := r.Header.Get("X-Org-ID")
		userID := r.Header.Get("X-User-ID")
		if orgID == "" || userID == "" {
			api.Error(w, http.StatusUnauthorized, "missing identity headers")
			return
		}

		role := domain.Role(r.Header.Get("X-Role"))
		if role == "" {
			role = domain.RoleViewer
		}
		if !domain.IsValidRole(role) {
			api.Error(w, http.StatusBadRequest, "invalid role")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, OrgIDKey, orgID)
		ctx = context.WithValue(ctx, UserIDKey, userID)
		ctx = context.WithValue(ctx, RoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgID returns the organization ID from context.
func GetOrgID(ctx context.Context) string {
	orgID, _ := ctx.Value(OrgIDKey).(string)
	return orgID
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetRole returns the caller's role from context.
func GetRole(ctx context.Context) domain.Role {
	role, _ := ctx.Value(RoleKey).(domain.Role)
	return role
}
