// Package orgs provides the tenant directory: organizations and the users that
// belong to them.
//
// # Overview
//
// Organizations are mutually data-isolated tenants. Every user belongs to
// exactly one organization, except organization-agnostic super administrators
// whose OrganizationID is nil. Suspending an organization (IsActive=false)
// makes every evaluation for its members deny, except super-admin global scope.
//
// # Implementations
//
// MemoryDirectory: read-mostly snapshot used on the evaluation path. Mutations
// fire OnOrganizationStatusChange hooks so decision caches can drop the
// organization's entries.
//
// SQLStore: PostgreSQL-backed persistence (lib/pq). Tests run the same
// queries against in-memory SQLite.
//
// Syncer: refreshes a MemoryDirectory from a SQLStore on a cron schedule. A
// listing taken while the directory was written to is discarded and read
// again, so a sync never undoes an administrative change.
//
// # Usage Example
//
//	dir := orgs.NewMemoryDirectory()
//	store := orgs.NewSQLStore(db)
//
//	syncer := orgs.NewSyncer(store, dir, "@every 30s", logger)
//	if err := syncer.Start(ctx); err != nil {
//		return err
//	}
//	defer syncer.Stop(ctx)
//
//	user, err := dir.GetUser(ctx, "alice")
//	if errors.Is(err, orgs.ErrUserNotFound) {
//		// deny
//	}
//
// Seed a development directory from YAML:
//
//	seed, err := orgs.LoadSeedFile("directory.yaml")
//	if err != nil {
//		return err
//	}
//	seed.Apply(dir)
//
// # Related Packages
//
//   - pkg/rbac: Evaluator reads users and organizations through Directory
//   - pkg/admin: Administrative mutations
package orgs
