package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// PermissionMiddleware gates routes with the evaluator itself
type PermissionMiddleware struct {
	evaluator *rbac.Evaluator
	logger    *observability.Logger
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(evaluator *rbac.Evaluator, logger *observability.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{
		evaluator: evaluator,
		logger:    logger,
	}
}

func actorFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// RequireActor rejects requests without an actor header and stores the actor
// in the request context
func (pm *PermissionMiddleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := actorFromRequest(r)
		if actorID == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		ctx := observability.WithActorID(r.Context(), actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission creates middleware that requires a specific permission.
// Organization scoped checks are made against the actor's own organization.
func (pm *PermissionMiddleware) RequirePermission(resource, action string, scope permission.Scope) func(http.Handler) http.Handler {
	return pm.RequireAny(permission.Request{Resource: resource, Action: action, Scope: scope})
}

// RequireAny lets the request through when any of reqs is allowed for the
// actor. Checks stop at the first ALLOW.
func (pm *PermissionMiddleware) RequireAny(reqs ...permission.Request) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := actorFromRequest(r)
			if actorID == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			ctx := observability.WithActorID(r.Context(), actorID)
			user, err := pm.evaluator.Directory().GetUser(ctx, actorID)
			if errors.Is(err, orgs.ErrUserNotFound) {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if err != nil {
				pm.logger.WithError(err).WithField("actor_id", actorID).Error("Failed to resolve actor")
				http.Error(w, "Permission check failed", http.StatusInternalServerError)
				return
			}

			for _, req := range reqs {
				decision := pm.evaluator.Evaluate(ctx, *user, req, rbac.ResourceOrganization(user.OrgID()))
				if decision.Allowed {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, "Insufficient permissions", http.StatusForbidden)
		})
	}
}
