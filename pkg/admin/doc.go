// Package admin applies administrative mutations to organizations, users and
// the role catalog.
//
// # Overview
//
// The evaluator never mutates anything. Everything that changes who may do
// what goes through Service, which authorizes the acting user, persists the
// change to an optional Store, updates the in-memory directory and records an
// audit entry.
//
// # Authorization
//
//	CreateOrganization, SetOrganizationActive, ReloadCatalog   system_super_admin only
//	CreateUser, SetUserActive                                  actor level > target role level
//
// Non super administrators only see their own organization. Users and
// organizations of other tenants are reported as not found rather than
// forbidden, so responses do not reveal whether they exist.
//
// # Cache Invalidation
//
// Service does not talk to the decision cache. Suspending or reactivating an
// organization goes through MemoryDirectory.SetOrganizationActive, whose
// status hooks invalidate the organization's cached decisions; reloading the
// catalog fires the catalog's reload hooks.
//
//	svc := admin.NewService(catalog, directory,
//		admin.WithStore(sqlStore),
//		admin.WithRecorder(recorder),
//	)
//	org, err := svc.SetOrganizationActive(ctx, actorID, "acme", false)
//
// # Related Packages
//
//   - pkg/orgs: Directory and SQL store
//   - pkg/rbac: Catalog and CanManage
//   - pkg/api: HTTP exposure of this service
package admin
