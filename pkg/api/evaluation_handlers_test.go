package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/permission"
	"github.com/platinummonkey/warden/pkg/rbac"
)

func TestEvaluateEndpoint(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name    string
		body    EvaluateRequest
		allowed bool
		reason  string
	}{
		{
			name:    "agent reads own data",
			body:    EvaluateRequest{UserID: "agent", Resource: "data", Action: "read", Scope: permission.ScopeOwn},
			allowed: true,
			reason:  "granted by data:read:own",
		},
		{
			name:    "agent cannot delete users",
			body:    EvaluateRequest{UserID: "agent", Resource: "users", Action: "delete", Scope: permission.ScopeOrganization, ResourceOrganizationID: "acme"},
			allowed: false,
			reason:  permission.PublicDenyReason,
		},
		{
			name:    "manager reads users of own tenant",
			body:    EvaluateRequest{UserID: "cam", Resource: "users", Action: "read", Scope: permission.ScopeOrganization, ResourceOrganizationID: "acme"},
			allowed: true,
			reason:  "granted by users:*:organization",
		},
		{
			name:    "manager of another tenant",
			body:    EvaluateRequest{UserID: "globex-cam", Resource: "users", Action: "read", Scope: permission.ScopeOrganization, ResourceOrganizationID: "acme"},
			allowed: false,
			reason:  permission.PublicDenyReason,
		},
		{
			name:    "super admin global",
			body:    EvaluateRequest{UserID: "root", Resource: "organizations", Action: "delete", Scope: permission.ScopeGlobal},
			allowed: true,
			reason:  "granted by *:*:global",
		},
		{
			name:    "unknown user",
			body:    EvaluateRequest{UserID: "ghost", Resource: "data", Action: "read", Scope: permission.ScopeOwn},
			allowed: false,
			reason:  permission.PublicDenyReason,
		},
		{
			name:    "malformed tuple",
			body:    EvaluateRequest{UserID: "agent", Resource: "data", Scope: permission.ScopeOwn},
			allowed: false,
			reason:  permission.PublicDenyReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/evaluate", "", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got := decode[permission.PublicDecision](t, rec)
			assert.Equal(t, tt.allowed, got.Allowed)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestEvaluateEndpointHidesDenyReason(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, "/v1/evaluate", "", EvaluateRequest{
		UserID: "globex-cam", Resource: "data", Action: "read", Scope: permission.ScopeOrganization, ResourceOrganizationID: "acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cross")
	assert.NotContains(t, rec.Body.String(), "code")

	// the specific reason still reaches the audit trail
	require.NoError(t, env.recorder.Close(context.Background()))
	records := env.sink.Records()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, audit.KindDecision, last.Kind)
	require.NotNil(t, last.Decision)
	assert.Equal(t, permission.CodeCrossTenant, last.Decision.Code)
}

func TestEvaluateEndpointValidation(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"user_id":`},
		{"unknown field", `{"user_id":"agent","role":"admin"}`},
		{"missing user", EvaluateRequest{Resource: "data", Action: "read", Scope: permission.ScopeOwn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/evaluate", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	req := env.do(t, http.MethodPost, "/v1/evaluate", "", nil)
	assert.Equal(t, http.StatusBadRequest, req.Code)
}

func TestEvaluateBatchEndpoint(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, "/v1/evaluate/batch", "", BatchEvaluateRequest{
		UserID: "sup",
		Requests: []rbac.BatchItem{
			{Request: permission.Request{Resource: "data", Action: "update", Scope: permission.ScopeOwn}},
			{Request: permission.Request{Resource: "users", Action: "delete", Scope: permission.ScopeOrganization}, ResourceOrganizationID: "acme"},
			{Request: permission.Request{Resource: "users", Action: "read", Scope: permission.ScopeOrganization}, ResourceOrganizationID: "acme"},
			{Request: permission.Request{Resource: "users", Action: "read", Scope: permission.ScopeOrganization}, ResourceOrganizationID: "globex"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[BatchEvaluateResponse](t, rec)
	require.Len(t, resp.Decisions, 4)

	allowed := make([]bool, len(resp.Decisions))
	for i, d := range resp.Decisions {
		allowed[i] = d.Allowed
	}
	assert.Equal(t, []bool{true, false, true, false}, allowed)
}

func TestEvaluateBatchEndpointLimits(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, "/v1/evaluate/batch", "", BatchEvaluateRequest{UserID: "agent"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"decisions":[]}`, rec.Body.String())

	items := make([]rbac.BatchItem, MaxBatchSize+1)
	for i := range items {
		items[i] = rbac.BatchItem{Request: permission.Request{Resource: "data", Action: "read", Scope: permission.ScopeOwn}}
	}
	rec = env.do(t, http.MethodPost, "/v1/evaluate/batch", "", BatchEvaluateRequest{UserID: "agent", Requests: items})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoles(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		actor  string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"ghost", http.StatusUnauthorized},
		{"agent", http.StatusForbidden},
		{"sup", http.StatusForbidden},
		{"cam", http.StatusOK},
		{"root", http.StatusOK},
	}

	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/v1/roles", tt.actor, nil)
		if rec.Code != tt.status {
			t.Errorf("actor %q: got %d, want %d", tt.actor, rec.Code, tt.status)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/roles", "cam", nil)
	resp := decode[CatalogResponse](t, rec)
	assert.Equal(t, rbac.DefaultCatalogVersion, resp.Version)
	require.Len(t, resp.Roles, 6)
	assert.Equal(t, rbac.RoleSystemSuperAdmin, resp.Roles[0].ID)
	assert.Equal(t, []string{"*:*:global"}, resp.Roles[0].Permissions)
	assert.Equal(t, 1, resp.Roles[5].Level)
}

func TestListRolesSuspendedTenant(t *testing.T) {
	env := setupServer(t)
	require.NoError(t, env.directory.SetOrganizationActive("acme", false))

	rec := env.do(t, http.MethodGet, "/v1/roles", "cam", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
