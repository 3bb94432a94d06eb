// Package rbac provides the role catalog and the permission evaluator.
//
// # Overview
//
// Roles are data: a versioned catalog of six roles, each with a privilege level
// from 1 to 6 and an ordered list of resource:action:scope permissions. The
// evaluator answers ALLOW or DENY for a user and a concrete request using the
// catalog and the tenant directory. Permissions are additive; there are no
// explicit denies, and anything not granted is denied.
//
// # Built-In Roles
//
//	system_super_admin      level 6   *:*:global
//	client_account_manager  level 5   users, data, tasks, reports, settings within the organization
//	supervisor              level 4   reads users, manages data and tasks within the organization
//	agent_employee          level 3   own data (read) and own tasks
//	client_employee         level 2   reads organization and own data, own reports
//	external_client_view    level 1   reads own data and reports
//
// Levels order administration only (CanManage requires a strictly higher
// level). They never take part in a decision.
//
// # Catalog
//
// A Catalog holds an immutable Snapshot behind an atomic pointer. Reload builds
// and validates a complete snapshot before swapping it in, so concurrent
// evaluations see either the old role set or the new one. A failed reload keeps
// the previous snapshot.
//
//	catalog, err := rbac.NewCatalog(ctx, rbac.NewFileSource("catalog.yaml", log))
//	if err != nil {
//		log.Fatalf("Failed to load role catalog: %v", err)
//	}
//	catalog.OnReload(func(*rbac.Snapshot) { decisions.InvalidateAll(ctx) })
//
// A Watcher reloads the catalog when its file changes.
//
// # Evaluation
//
// Evaluate short-circuits on the first DENY:
//
//  1. inactive user                         user inactive
//  2. malformed request                     invalid request shape
//  3. suspended or missing organization     organization suspended / unknown organization (below level 6)
//  4. role missing from the catalog         unknown role
//  5. organization scope, other tenant      cross-tenant access denied (below level 6)
//  6. first matching permission             granted by {permission}
//  7. nothing matched                       no matching permission for role {name}
//
// Only steps 6 and 7 are cached, keyed by catalog version, role, request and
// (for organization scope) the organization. Steps 1 to 5 run on every call so
// a cached entry never outlives a user or tenant status change.
//
//	evaluator := rbac.NewEvaluator(catalog, directory,
//		rbac.WithCache(decisions),
//		rbac.WithRecorder(recorder),
//		rbac.WithMetrics(metrics),
//	)
//	d := evaluator.Evaluate(ctx, user, req, rbac.ResourceOrganization(orgID))
//
// EvaluateBatch evaluates many requests for one user concurrently and returns
// the decisions in input order.
//
// # Related Packages
//
//   - pkg/permission: Grammar, requests and decisions
//   - pkg/orgs: Tenant directory
//   - pkg/cache: Decision cache backends
//   - pkg/audit: Decision recording
package rbac
