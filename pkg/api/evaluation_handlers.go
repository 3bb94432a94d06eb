package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// MaxBatchSize bounds the number of requests in one batch call
const MaxBatchSize = 500

// EvaluateRequest is the body of POST /v1/evaluate
type EvaluateRequest struct {
	UserID                 string           `json:"user_id"`
	Resource               string           `json:"resource"`
	Action                 string           `json:"action"`
	Scope                  permission.Scope `json:"scope"`
	ResourceOrganizationID string           `json:"resource_org_id,omitempty"`
}

// BatchEvaluateRequest is the body of POST /v1/evaluate/batch
type BatchEvaluateRequest struct {
	UserID   string           `json:"user_id"`
	Requests []rbac.BatchItem `json:"requests"`
}

// BatchEvaluateResponse carries one decision per request, in order
type BatchEvaluateResponse struct {
	Decisions []permission.PublicDecision `json:"decisions"`
}

// RoleResponse is one role of the catalog listing
type RoleResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

// CatalogResponse is the body of GET /v1/roles
type CatalogResponse struct {
	Version string         `json:"version"`
	Roles   []RoleResponse `json:"roles"`
}

// EvaluationHandlers serves permission decisions
type EvaluationHandlers struct {
	evaluator *rbac.Evaluator
	logger    *observability.Logger
}

// NewEvaluationHandlers creates a new EvaluationHandlers
func NewEvaluationHandlers(evaluator *rbac.Evaluator, logger *observability.Logger) *EvaluationHandlers {
	return &EvaluationHandlers{evaluator: evaluator, logger: logger}
}

// RegisterRoutes registers evaluation routes
func (h *EvaluationHandlers) RegisterRoutes(router *mux.Router, pm *PermissionMiddleware) {
	router.HandleFunc("/evaluate", h.Evaluate).Methods(http.MethodPost)
	router.HandleFunc("/evaluate/batch", h.EvaluateBatch).Methods(http.MethodPost)

	readRoles := pm.RequireAny(
		permission.Request{Resource: "roles", Action: "read", Scope: permission.ScopeOrganization},
		permission.Request{Resource: "roles", Action: "read", Scope: permission.ScopeGlobal},
	)
	router.Handle("/roles", readRoles(http.HandlerFunc(h.ListRoles))).Methods(http.MethodGet)
}

// Evaluate answers a single permission check. Denials carry only the generic
// reason; the specific one is logged and audited.
func (h *EvaluationHandlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	decision := h.evaluator.EvaluateUser(r.Context(), req.UserID, permission.Request{
		Resource: req.Resource,
		Action:   req.Action,
		Scope:    req.Scope,
	}, rbac.ResourceOrganization(req.ResourceOrganizationID))

	httputil.WriteSuccess(w, decision.Public())
}

// EvaluateBatch answers many checks for one user, in input order
func (h *EvaluationHandlers) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchEvaluateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}
	if len(req.Requests) > MaxBatchSize {
		httputil.WriteBadRequest(w, fmt.Sprintf("at most %d requests per batch", MaxBatchSize))
		return
	}

	decisions := h.evaluator.EvaluateUserBatch(r.Context(), req.UserID, req.Requests)

	resp := BatchEvaluateResponse{Decisions: make([]permission.PublicDecision, len(decisions))}
	for i, d := range decisions {
		resp.Decisions[i] = d.Public()
	}
	httputil.WriteSuccess(w, resp)
}

// ListRoles returns the catalog currently in effect
func (h *EvaluationHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	snap := h.evaluator.Catalog().Snapshot()
	if snap == nil {
		httputil.WriteServiceUnavailable(w, "role catalog unavailable")
		return
	}

	resp := CatalogResponse{Version: snap.Version}
	for _, role := range snap.Roles() {
		perms := make([]string, len(role.Permissions))
		for i, p := range role.Permissions {
			perms[i] = p.String()
		}
		resp.Roles = append(resp.Roles, RoleResponse{
			ID:          role.ID,
			DisplayName: role.DisplayName,
			Level:       role.Level,
			Permissions: perms,
		})
	}
	httputil.WriteSuccess(w, resp)
}
