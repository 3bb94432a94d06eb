package rbac

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
)

var evalTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordedDecision struct {
	actor         string
	orgID         string
	req           permission.Request
	resourceOrgID string
	decision      permission.Decision
}

type stubRecorder struct {
	mu      sync.Mutex
	records []recordedDecision
}

func (r *stubRecorder) RecordDecision(ctx context.Context, actorUserID, orgID string, req permission.Request, resourceOrgID string, decision permission.Decision) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedDecision{actorUserID, orgID, req, resourceOrgID, decision})
	return true
}

func (r *stubRecorder) all() []recordedDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedDecision(nil), r.records...)
}

// brokenDirectory fails every lookup with a non not-found error
type brokenDirectory struct{}

func (brokenDirectory) GetUser(ctx context.Context, id string) (*orgs.User, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) GetOrganization(ctx context.Context, id string) (*orgs.Organization, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) SameOrganization(ctx context.Context, a, b string) (bool, error) {
	return false, errors.New("connection refused")
}

func testDirectory(t testing.TB) *orgs.MemoryDirectory {
	t.Helper()

	dir := orgs.NewMemoryDirectory()
	dir.PutOrganization(orgs.Organization{ID: "org-x", Name: "X", Plan: orgs.PlanPro, IsActive: true})
	dir.PutOrganization(orgs.Organization{ID: "org-y", Name: "Y", Plan: orgs.PlanFree, IsActive: true})
	dir.PutOrganization(orgs.Organization{ID: "org-z", Name: "Z", Plan: orgs.PlanEnterprise, IsActive: false})

	users := []orgs.User{
		{ID: "agent", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleAgentEmployee, IsActive: true},
		{ID: "manager", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleClientAccountManager, IsActive: true},
		{ID: "supervisor", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleSupervisor, IsActive: true},
		{ID: "retired", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleSupervisor, IsActive: false},
		{ID: "suspended", OrganizationID: orgs.StringPtr("org-z"), RoleID: RoleSupervisor, IsActive: true},
		{ID: "root", RoleID: RoleSystemSuperAdmin, IsActive: true},
		{ID: "root-in-z", OrganizationID: orgs.StringPtr("org-z"), RoleID: RoleSystemSuperAdmin, IsActive: true},
		{ID: "janitor", OrganizationID: orgs.StringPtr("org-x"), RoleID: "janitor", IsActive: true},
		{ID: "viewer", OrganizationID: orgs.StringPtr("org-y"), RoleID: RoleExternalClientView, IsActive: true},
	}
	for _, u := range users {
		require.NoError(t, dir.PutUser(u))
	}

	return dir
}

func newTestEvaluator(t testing.TB, opts ...Option) (*Evaluator, *orgs.MemoryDirectory, *stubRecorder) {
	t.Helper()

	dir := testDirectory(t)
	rec := &stubRecorder{}
	base := []Option{
		WithRecorder(rec),
		WithClock(func() time.Time { return evalTime }),
		WithLogger(observability.NewLogger(observability.ErrorLevel, nil)),
	}
	e := NewEvaluator(MustDefaultCatalog(), dir, append(base, opts...)...)
	return e, dir, rec
}

func mustUser(t testing.TB, dir orgs.Directory, id string) orgs.User {
	t.Helper()
	u, err := dir.GetUser(context.Background(), id)
	require.NoError(t, err)
	return *u
}

func req(resource, action string, scope permission.Scope) permission.Request {
	return permission.Request{Resource: resource, Action: action, Scope: scope}
}

func TestEndToEndScenarios(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	ctx := context.Background()

	t.Run("agent reads own data", func(t *testing.T) {
		d := e.Evaluate(ctx, mustUser(t, dir, "agent"), req("data", "read", permission.ScopeOwn))
		assert.True(t, d.Allowed)
		require.NotNil(t, d.MatchedPermission)
		assert.Equal(t, "data:read:own", d.MatchedPermission.String())
		assert.Contains(t, d.Reason, "data:read:own")
		assert.Equal(t, "Agent Employee", d.RoleName)
		assert.Equal(t, evalTime, d.EvaluatedAt)
	})

	t.Run("agent cannot delete users", func(t *testing.T) {
		d := e.Evaluate(ctx, mustUser(t, dir, "agent"), req("users", "delete", permission.ScopeOrganization), ResourceOrganization("org-x"))
		assert.False(t, d.Allowed)
		assert.Nil(t, d.MatchedPermission)
		assert.Equal(t, permission.CodeNoMatchingPermission, d.Code)
		assert.Contains(t, d.Reason, "no matching permission")
		assert.Equal(t, "no matching permission for role Agent Employee", d.Reason)
	})

	t.Run("manager reads another tenant", func(t *testing.T) {
		d := e.Evaluate(ctx, mustUser(t, dir, "manager"), req("users", "read", permission.ScopeOrganization), ResourceOrganization("org-y"))
		assert.False(t, d.Allowed)
		assert.Equal(t, permission.CodeCrossTenant, d.Code)
		assert.Equal(t, "cross-tenant access denied", d.Reason)
	})

	t.Run("super admin manages organizations", func(t *testing.T) {
		d := e.Evaluate(ctx, mustUser(t, dir, "root"), req("organizations", "manage", permission.ScopeGlobal))
		assert.True(t, d.Allowed)
		require.NotNil(t, d.MatchedPermission)
		assert.Equal(t, "*:*:global", d.MatchedPermission.String())
	})

	t.Run("inactive supervisor", func(t *testing.T) {
		d := e.Evaluate(ctx, mustUser(t, dir, "retired"), req("data", "read", permission.ScopeOwn))
		assert.False(t, d.Allowed)
		assert.Equal(t, permission.CodeUserInactive, d.Code)
		assert.Equal(t, "user inactive", d.Reason)
	})
}

func TestEvaluateDenialReasons(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		user     orgs.User
		req      permission.Request
		opts     []EvalOption
		wantCode permission.ReasonCode
		wantRole string
	}{
		{
			name:     "malformed request",
			user:     mustUser(t, dir, "agent"),
			req:      req("data", "", permission.ScopeOwn),
			wantCode: permission.CodeInvalidRequest,
			wantRole: "Agent Employee",
		},
		{
			name:     "wildcard in request",
			user:     mustUser(t, dir, "agent"),
			req:      req("data", "*", permission.ScopeOwn),
			wantCode: permission.CodeInvalidRequest,
		},
		{
			name:     "unknown scope",
			user:     mustUser(t, dir, "agent"),
			req:      req("data", "read", permission.Scope("team")),
			wantCode: permission.CodeInvalidRequest,
		},
		{
			name:     "suspended organization",
			user:     mustUser(t, dir, "suspended"),
			req:      req("data", "read", permission.ScopeOwn),
			wantCode: permission.CodeOrganizationSuspended,
		},
		{
			name:     "organization missing",
			user:     orgs.User{ID: "orphan", OrganizationID: orgs.StringPtr("org-gone"), RoleID: RoleAgentEmployee, IsActive: true},
			req:      req("data", "read", permission.ScopeOwn),
			wantCode: permission.CodeUnknownOrganization,
		},
		{
			name:     "unknown role",
			user:     mustUser(t, dir, "janitor"),
			req:      req("data", "read", permission.ScopeOwn),
			wantCode: permission.CodeUnknownRole,
			wantRole: "janitor",
		},
		{
			name:     "organization scope without resource organization",
			user:     mustUser(t, dir, "manager"),
			req:      req("data", "read", permission.ScopeOrganization),
			wantCode: permission.CodeCrossTenant,
		},
		{
			name:     "inactive beats invalid organization",
			user:     orgs.User{ID: "gone", OrganizationID: orgs.StringPtr("org-gone"), RoleID: RoleSupervisor},
			req:      req("data", "read", permission.ScopeOwn),
			wantCode: permission.CodeUserInactive,
		},
		{
			name:     "inactive beats malformed request",
			user:     orgs.User{ID: "gone", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleAgentEmployee},
			req:      req("data", "", permission.ScopeOwn),
			wantCode: permission.CodeUserInactive,
			wantRole: "Agent Employee",
		},
		{
			name:     "suspension beats unknown role",
			user:     orgs.User{ID: "odd", OrganizationID: orgs.StringPtr("org-z"), RoleID: "janitor", IsActive: true},
			req:      req("data", "read", permission.ScopeOwn),
			wantCode: permission.CodeOrganizationSuspended,
		},
		{
			name:     "global scope for an organization role",
			user:     mustUser(t, dir, "manager"),
			req:      req("users", "read", permission.ScopeGlobal),
			wantCode: permission.CodeNoMatchingPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(ctx, tt.user, tt.req, tt.opts...)
			assert.False(t, d.Allowed)
			assert.Nil(t, d.MatchedPermission)
			assert.Equal(t, tt.wantCode, d.Code)
			assert.NotEmpty(t, d.Reason)
			if tt.wantRole != "" {
				assert.Equal(t, tt.wantRole, d.RoleName)
			}
			assert.Equal(t, permission.PublicDenyReason, d.Public().Reason)
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	ctx := context.Background()

	requests := []permission.Request{
		req("users", "read", permission.ScopeOrganization),
		req("data", "read", permission.ScopeOrganization),
		req("data", "delete", permission.ScopeOrganization),
		req("settings", "update", permission.ScopeOrganization),
	}

	for _, id := range []string{"agent", "manager", "supervisor"} {
		user := mustUser(t, dir, id)
		for _, r := range requests {
			d := e.Evaluate(ctx, user, r, ResourceOrganization("org-y"))
			if d.Allowed || d.Code != permission.CodeCrossTenant {
				t.Errorf("%s %s against org-y: allowed=%v code=%s", id, r, d.Allowed, d.Code)
			}
		}
	}

	// the same requests inside the user's own tenant are decided by permissions
	d := e.Evaluate(ctx, mustUser(t, dir, "manager"), req("users", "read", permission.ScopeOrganization), ResourceOrganization("org-x"))
	assert.True(t, d.Allowed)
	assert.Equal(t, "users:*:organization", d.MatchedPermission.String())

	d = e.Evaluate(ctx, mustUser(t, dir, "supervisor"), req("data", "delete", permission.ScopeOrganization), ResourceOrganization("org-x"))
	assert.True(t, d.Allowed)
}

func TestSuperAdminBypassesTenantChecks(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	ctx := context.Background()

	// suspended home organization does not apply at level 6
	d := e.Evaluate(ctx, mustUser(t, dir, "root-in-z"), req("users", "delete", permission.ScopeGlobal))
	assert.True(t, d.Allowed)

	// nor does the cross-tenant boundary; the permission set still decides
	d = e.Evaluate(ctx, mustUser(t, dir, "root"), req("users", "read", permission.ScopeOrganization), ResourceOrganization("org-y"))
	assert.NotEqual(t, permission.CodeCrossTenant, d.Code)
	assert.Equal(t, permission.CodeNoMatchingPermission, d.Code)
}

func TestSuperAdminUniversality(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	root := mustUser(t, dir, "root")

	resources := []string{"users", "roles", "data", "tasks", "reports", "settings", "audit", "organizations", "billing"}
	actions := []string{"create", "read", "update", "delete", "manage", "export"}

	for _, res := range resources {
		for _, act := range actions {
			d := e.Evaluate(context.Background(), root, req(res, act, permission.ScopeGlobal))
			if !d.Allowed {
				t.Errorf("super admin denied %s:%s:global: %s", res, act, d.Reason)
			}
		}
	}
}

func TestInactiveUserAlwaysDenied(t *testing.T) {
	e, dir, _ := newTestEvaluator(t)
	ctx := context.Background()

	for _, id := range []string{"agent", "manager", "supervisor", "root", "viewer"} {
		require.NoError(t, dir.SetUserActive(id, false))
		user := mustUser(t, dir, id)

		for _, scope := range permission.Scopes() {
			d := e.Evaluate(ctx, user, req("data", "read", scope), ResourceOrganization(user.OrgID()))
			if d.Allowed || d.Code != permission.CodeUserInactive {
				t.Errorf("inactive %s on scope %s: allowed=%v code=%s", id, scope, d.Allowed, d.Code)
			}
		}
	}
}

func TestLevelDoesNotAffectMatching(t *testing.T) {
	def := &Definition{Version: "flat", Roles: []RoleDefinition{
		{ID: "intern", DisplayName: "Intern", Level: 1, Permissions: []string{"*:*:own"}},
		{ID: "lead", DisplayName: "Lead", Level: 5, Permissions: []string{"tasks:read:own"}},
	}}
	c, err := NewCatalog(context.Background(), NewStaticSource(def))
	require.NoError(t, err)

	e := NewEvaluator(c, orgs.NewMemoryDirectory())
	intern := orgs.User{ID: "i", RoleID: "intern", IsActive: true}
	lead := orgs.User{ID: "l", RoleID: "lead", IsActive: true}

	assert.True(t, e.Evaluate(context.Background(), intern, req("data", "delete", permission.ScopeOwn)).Allowed)
	assert.False(t, e.Evaluate(context.Background(), lead, req("data", "delete", permission.ScopeOwn)).Allowed)
}

func TestFirstMatchingPermissionWins(t *testing.T) {
	def := &Definition{Version: "order", Roles: []RoleDefinition{
		{ID: "r", DisplayName: "R", Level: 1, Permissions: []string{"data:read:own", "data:*:own", "*:*:own"}},
	}}
	c, err := NewCatalog(context.Background(), NewStaticSource(def))
	require.NoError(t, err)
	e := NewEvaluator(c, orgs.NewMemoryDirectory())
	u := orgs.User{ID: "u", RoleID: "r", IsActive: true}

	d := e.Evaluate(context.Background(), u, req("data", "read", permission.ScopeOwn))
	assert.Equal(t, "data:read:own", d.MatchedPermission.String())

	d = e.Evaluate(context.Background(), u, req("data", "write", permission.ScopeOwn))
	assert.Equal(t, "data:*:own", d.MatchedPermission.String())

	d = e.Evaluate(context.Background(), u, req("tasks", "write", permission.ScopeOwn))
	assert.Equal(t, "*:*:own", d.MatchedPermission.String())
	assert.Equal(t, "granted by *:*:own", d.Reason)
}

func TestEvaluateUser(t *testing.T) {
	e, _, rec := newTestEvaluator(t)
	ctx := context.Background()

	d := e.EvaluateUser(ctx, "agent", req("tasks", "create", permission.ScopeOwn))
	assert.True(t, d.Allowed)

	d = e.EvaluateUser(ctx, "nobody", req("tasks", "create", permission.ScopeOwn))
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.CodeUnknownUser, d.Code)
	assert.Equal(t, "unknown user", d.Reason)

	records := rec.all()
	require.Len(t, records, 2)
	assert.Equal(t, "nobody", records[1].actor)
	assert.Equal(t, permission.CodeUnknownUser, records[1].decision.Code)
}

func TestDirectoryFailuresDeny(t *testing.T) {
	e := NewEvaluator(MustDefaultCatalog(), brokenDirectory{},
		WithLogger(observability.NewLogger(observability.ErrorLevel, nil)))
	ctx := context.Background()

	d := e.EvaluateUser(ctx, "agent", req("data", "read", permission.ScopeOwn))
	assert.Equal(t, permission.CodeUnknownUser, d.Code)

	user := orgs.User{ID: "agent", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleAgentEmployee, IsActive: true}
	d = e.Evaluate(ctx, user, req("data", "read", permission.ScopeOwn))
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.CodeUnknownOrganization, d.Code)
}

func TestEvaluateRecordsEveryDecision(t *testing.T) {
	e, dir, rec := newTestEvaluator(t)
	ctx := context.Background()
	manager := mustUser(t, dir, "manager")

	e.Evaluate(ctx, manager, req("users", "read", permission.ScopeOrganization), ResourceOrganization("org-x"))
	e.Evaluate(ctx, manager, req("users", "read", permission.ScopeOrganization), ResourceOrganization("org-y"))

	records := rec.all()
	require.Len(t, records, 2)

	assert.Equal(t, "manager", records[0].actor)
	assert.Equal(t, "org-x", records[0].orgID)
	assert.Equal(t, "org-x", records[0].resourceOrgID)
	assert.True(t, records[0].decision.Allowed)

	// the audit trail keeps the specific reason
	assert.Equal(t, "org-y", records[1].resourceOrgID)
	assert.Equal(t, "cross-tenant access denied", records[1].decision.Reason)
}

func TestEvaluateMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	e, dir, _ := newTestEvaluator(t, WithMetrics(metrics))
	ctx := context.Background()

	e.Evaluate(ctx, mustUser(t, dir, "agent"), req("data", "read", permission.ScopeOwn))
	e.Evaluate(ctx, mustUser(t, dir, "agent"), req("data", "delete", permission.ScopeOwn))
	e.Evaluate(ctx, mustUser(t, dir, "retired"), req("data", "read", permission.ScopeOwn))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EvaluationsTotal.WithLabelValues("allow", "granted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EvaluationsTotal.WithLabelValues("deny", "no_matching_permission")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EvaluationsTotal.WithLabelValues("deny", "user_inactive")))
}

func TestCacheTransparency(t *testing.T) {
	ctx := context.Background()
	uncached, dir, _ := newTestEvaluator(t)
	cached := NewEvaluator(MustDefaultCatalog(), dir, WithCache(cache.NewMemoryCache(100, time.Minute, nil)))

	requests := []permission.Request{}
	for _, res := range []string{"users", "roles", "data", "tasks", "reports", "settings", "audit"} {
		for _, act := range []string{"read", "create", "delete"} {
			for _, scope := range permission.Scopes() {
				requests = append(requests, req(res, act, scope))
			}
		}
	}

	for _, id := range []string{"agent", "manager", "supervisor", "root", "viewer", "retired", "suspended", "janitor"} {
		user := mustUser(t, dir, id)
		for _, resourceOrg := range []string{"org-x", "org-y", ""} {
			for _, r := range requests {
				want := uncached.Evaluate(ctx, user, r, ResourceOrganization(resourceOrg))
				// twice, so the second call is served from the cache
				for i := 0; i < 2; i++ {
					got := cached.Evaluate(ctx, user, r, ResourceOrganization(resourceOrg))
					if got.Allowed != want.Allowed || got.Code != want.Code {
						t.Fatalf("%s %s org=%q: cached %v/%s, uncached %v/%s", id, r, resourceOrg, got.Allowed, got.Code, want.Allowed, want.Code)
					}
				}
			}
		}
	}
}

func TestCacheSharedAcrossUsersOfRole(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(100, time.Minute, nil)
	e, dir, _ := newTestEvaluator(t, WithCache(mc))

	require.NoError(t, dir.PutUser(orgs.User{ID: "agent-2", OrganizationID: orgs.StringPtr("org-x"), RoleID: RoleAgentEmployee, IsActive: true}))

	first := e.Evaluate(ctx, mustUser(t, dir, "agent"), req("tasks", "update", permission.ScopeOwn))
	assert.False(t, first.FromCache)

	second := e.Evaluate(ctx, mustUser(t, dir, "agent-2"), req("tasks", "update", permission.ScopeOwn))
	assert.True(t, second.Allowed)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.EvaluatedAt, second.EvaluatedAt)

	fresh := e.Evaluate(ctx, mustUser(t, dir, "agent-2"), req("tasks", "update", permission.ScopeOwn), BypassCache())
	assert.False(t, fresh.FromCache)

	stats := mc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
}

func TestCachedDecisionStillChecksUser(t *testing.T) {
	ctx := context.Background()
	e, dir, _ := newTestEvaluator(t, WithCache(cache.NewMemoryCache(100, time.Minute, nil)))

	r := req("data", "read", permission.ScopeOrganization)
	d := e.Evaluate(ctx, mustUser(t, dir, "supervisor"), r, ResourceOrganization("org-x"))
	require.True(t, d.Allowed)

	require.NoError(t, dir.SetUserActive("supervisor", false))
	d = e.Evaluate(ctx, mustUser(t, dir, "supervisor"), r, ResourceOrganization("org-x"))
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.CodeUserInactive, d.Code)

	require.NoError(t, dir.SetUserActive("supervisor", true))
	require.NoError(t, dir.SetOrganizationActive("org-x", false))
	d = e.Evaluate(ctx, mustUser(t, dir, "supervisor"), r, ResourceOrganization("org-x"))
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.CodeOrganizationSuspended, d.Code)
}

func TestReloadChangesDecisions(t *testing.T) {
	ctx := context.Background()
	src := &switchSource{def: DefaultDefinition()}
	c, err := NewCatalog(ctx, src)
	require.NoError(t, err)

	mc := cache.NewMemoryCache(100, time.Minute, nil)
	c.OnReload(func(*Snapshot) { _ = mc.InvalidateAll(ctx) })

	dir := testDirectory(t)
	e := NewEvaluator(c, dir, WithCache(mc))
	agent := mustUser(t, dir, "agent")
	r := req("reports", "read", permission.ScopeOwn)

	assert.False(t, e.Evaluate(ctx, agent, r).Allowed)

	next := DefaultDefinition()
	next.Version = "2024.2"
	next.Roles[3].Permissions = append(next.Roles[3].Permissions, "reports:read:own")
	src.set(next, nil)
	require.NoError(t, c.Reload(ctx))

	d := e.Evaluate(ctx, agent, r)
	assert.True(t, d.Allowed)
	assert.False(t, d.FromCache)
}

// interleavedCache runs once at the first lookup, between the evaluator
// reading the snapshot and writing its decision
type interleavedCache struct {
	cache.Cache
	once sync.Once
	fn   func()
}

func (c *interleavedCache) Get(ctx context.Context, key cache.Key) (permission.Decision, bool) {
	c.once.Do(c.fn)
	return c.Cache.Get(ctx, key)
}

func TestReloadWithSameVersionDuringEvaluation(t *testing.T) {
	ctx := context.Background()
	src := &switchSource{def: DefaultDefinition()}
	c, err := NewCatalog(ctx, src)
	require.NoError(t, err)

	mc := cache.NewMemoryCache(100, time.Minute, nil)
	c.OnReload(func(*Snapshot) { _ = mc.InvalidateAll(ctx) })

	next := DefaultDefinition()
	next.Roles[3].Permissions = append(next.Roles[3].Permissions, "reports:read:own")
	ic := &interleavedCache{Cache: mc, fn: func() {
		src.set(next, nil)
		require.NoError(t, c.Reload(ctx))
	}}

	dir := testDirectory(t)
	cached := NewEvaluator(c, dir, WithCache(ic))
	uncached := NewEvaluator(c, dir)
	agent := mustUser(t, dir, "agent")
	r := req("reports", "read", permission.ScopeOwn)

	// evaluated against the snapshot read before the reload
	assert.False(t, cached.Evaluate(ctx, agent, r).Allowed)
	assert.Equal(t, DefaultCatalogVersion, c.Version())

	want := uncached.Evaluate(ctx, agent, r)
	require.True(t, want.Allowed)
	for i := 0; i < 2; i++ {
		got := cached.Evaluate(ctx, agent, r)
		assert.Equal(t, want.Allowed, got.Allowed, "call %d", i)
		assert.Equal(t, want.Code, got.Code, "call %d", i)
	}
}
