package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/admin"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
	"github.com/platinummonkey/warden/pkg/rbac"
)

func active(b bool) StatusRequest {
	return StatusRequest{IsActive: &b}
}

func TestAdminRequiresActor(t *testing.T) {
	env := setupServer(t)
	rec := env.do(t, http.MethodGet, "/v1/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCreateOrganization(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name   string
		actor  string
		body   interface{}
		status int
	}{
		{"super admin", "root", admin.CreateOrganizationInput{ID: "initech", Name: "Initech"}, http.StatusCreated},
		{"duplicate", "root", admin.CreateOrganizationInput{ID: "acme", Name: "Acme"}, http.StatusConflict},
		{"invalid id", "root", admin.CreateOrganizationInput{ID: "Bad Id", Name: "x"}, http.StatusBadRequest},
		{"account manager", "cam", admin.CreateOrganizationInput{ID: "umbrella", Name: "Umbrella"}, http.StatusForbidden},
		{"unknown actor", "ghost", admin.CreateOrganizationInput{ID: "umbrella", Name: "Umbrella"}, http.StatusForbidden},
		{"malformed", "root", `{"id":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/admin/organizations", tt.actor, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	org, err := env.directory.GetOrganization(t.Context(), "initech")
	require.NoError(t, err)
	assert.Equal(t, orgs.PlanFree, org.Plan)
	assert.True(t, org.IsActive)
}

func TestAdminSuspendOrganization(t *testing.T) {
	env := setupServer(t)
	evalAgent := EvaluateRequest{UserID: "agent", Resource: "data", Action: "read", Scope: permission.ScopeOwn}

	rec := env.do(t, http.MethodPatch, "/v1/admin/organizations/acme", "cam", active(false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/admin/organizations/acme", "root", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/admin/organizations/acme", "root", active(false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[orgs.Organization](t, rec).IsActive)

	rec = env.do(t, http.MethodPost, "/v1/evaluate", "", evalAgent)
	assert.False(t, decode[permission.PublicDecision](t, rec).Allowed)

	rec = env.do(t, http.MethodPatch, "/v1/admin/organizations/acme", "root", active(true))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/evaluate", "", evalAgent)
	assert.True(t, decode[permission.PublicDecision](t, rec).Allowed)

	rec = env.do(t, http.MethodPatch, "/v1/admin/organizations/missing", "root", active(false))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateUser(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name   string
		actor  string
		in     admin.CreateUserInput
		status int
	}{
		{"manager adds supervisor", "cam", admin.CreateUserInput{ID: "sup-2", OrganizationID: "acme", RoleID: rbac.RoleSupervisor}, http.StatusCreated},
		{"manager adds peer", "cam", admin.CreateUserInput{ID: "cam-2", OrganizationID: "acme", RoleID: rbac.RoleClientAccountManager}, http.StatusForbidden},
		{"manager adds into other tenant", "cam", admin.CreateUserInput{ID: "x-1", OrganizationID: "globex", RoleID: rbac.RoleAgentEmployee}, http.StatusNotFound},
		{"agent adds viewer", "agent", admin.CreateUserInput{ID: "viewer", OrganizationID: "acme", RoleID: rbac.RoleExternalClientView}, http.StatusCreated},
		{"unknown role", "root", admin.CreateUserInput{ID: "odd", OrganizationID: "acme", RoleID: "wizard"}, http.StatusBadRequest},
		{"duplicate", "root", admin.CreateUserInput{ID: "agent", OrganizationID: "acme", RoleID: rbac.RoleAgentEmployee}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/admin/users", tt.actor, tt.in)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	u, err := env.directory.GetUser(t.Context(), "sup-2")
	require.NoError(t, err)
	assert.Equal(t, "acme", u.OrgID())
}

func TestAdminDeactivateUser(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPatch, "/v1/admin/users/cam", "sup", active(false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/admin/users/globex-cam", "cam", active(false))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/admin/users/agent", "sup", active(false))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[orgs.User](t, rec).IsActive)

	rec = env.do(t, http.MethodPost, "/v1/evaluate", "", EvaluateRequest{
		UserID: "agent", Resource: "tasks", Action: "create", Scope: permission.ScopeOwn,
	})
	assert.False(t, decode[permission.PublicDecision](t, rec).Allowed)
}

func TestAdminListVisibility(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, "/v1/admin/users", "cam", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, u := range decode[[]orgs.User](t, rec) {
		assert.Equal(t, "acme", u.OrgID(), "user %s leaked across tenants", u.ID)
	}

	rec = env.do(t, http.MethodGet, "/v1/admin/users", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orgs.User](t, rec), 5)

	rec = env.do(t, http.MethodGet, "/v1/admin/organizations", "globex-cam", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]orgs.Organization](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "globex", list[0].ID)
}

func TestAdminReloadCatalog(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/catalog/reload", "cam", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/catalog/reload", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, rbac.DefaultCatalogVersion, decode[ReloadResponse](t, rec).Version)
}
