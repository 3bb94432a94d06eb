package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/admin"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// StatusRequest is the body of the PATCH endpoints
type StatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// ReloadResponse reports the catalog version after a reload
type ReloadResponse struct {
	Version string `json:"version"`
}

// AdminHandlers handles administrative HTTP requests
type AdminHandlers struct {
	service *admin.Service
	logger  *observability.Logger
}

// NewAdminHandlers creates a new AdminHandlers
func NewAdminHandlers(service *admin.Service, logger *observability.Logger) *AdminHandlers {
	return &AdminHandlers{service: service, logger: logger}
}

// RegisterRoutes registers admin routes. The router is expected to run
// behind RequireActor.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.CreateOrganization).Methods(http.MethodPost)
	router.HandleFunc("/organizations", h.ListOrganizations).Methods(http.MethodGet)
	router.HandleFunc("/organizations/{id}", h.UpdateOrganization).Methods(http.MethodPatch)

	router.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	router.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods(http.MethodPatch)

	router.HandleFunc("/catalog/reload", h.ReloadCatalog).Methods(http.MethodPost)
}

// CreateOrganization creates a new organization
func (h *AdminHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var in admin.CreateOrganizationInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), observability.GetActorID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// ListOrganizations lists the organizations visible to the actor
func (h *AdminHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOrganizations(r.Context(), observability.GetActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// UpdateOrganization suspends or reactivates an organization
func (h *AdminHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	active, ok := parseStatus(w, r)
	if !ok {
		return
	}

	org, err := h.service.SetOrganizationActive(r.Context(), observability.GetActorID(r.Context()), id, active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// CreateUser creates a new user
func (h *AdminHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in admin.CreateUserInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), observability.GetActorID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// ListUsers lists the users visible to the actor
func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context(), observability.GetActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// UpdateUser deactivates or reactivates a user
func (h *AdminHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	active, ok := parseStatus(w, r)
	if !ok {
		return
	}

	user, err := h.service.SetUserActive(r.Context(), observability.GetActorID(r.Context()), id, active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// ReloadCatalog reloads the role catalog from its source
func (h *AdminHandlers) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.ReloadCatalog(r.Context(), observability.GetActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, ReloadResponse{Version: version})
}

func parseStatus(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req StatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return false, false
	}
	if req.IsActive == nil {
		httputil.WriteBadRequest(w, "is_active is required")
		return false, false
	}
	return *req.IsActive, true
}

// writeError maps service errors to status codes. Anything unrecognized is
// logged and reported as a bare 500.
func (h *AdminHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, admin.ErrForbidden):
		httputil.WriteForbidden(w, "access denied")
	case errors.Is(err, admin.ErrInvalidInput):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, orgs.ErrUserNotFound), errors.Is(err, orgs.ErrOrganizationNotFound):
		httputil.WriteNotFound(w, "not found")
	case errors.Is(err, orgs.ErrAlreadyExists):
		httputil.WriteConflict(w, "already exists")
	case errors.Is(err, rbac.ErrCatalogUnavailable):
		httputil.WriteServiceUnavailable(w, "role catalog reload failed")
	default:
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": observability.GetRequestID(r.Context()),
		}).Error("Admin request failed")
		httputil.WriteInternalError(w)
	}
}
