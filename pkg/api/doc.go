// Package api exposes the permission evaluator and the admin service over
// HTTP.
//
// # Overview
//
// The API is an optional network surface in front of the library packages.
// Authentication is out of scope: an upstream gateway authenticates callers
// and forwards the acting user in the X-Actor-User-ID header.
//
// # Endpoints
//
//	POST  /v1/evaluate                     single decision
//	POST  /v1/evaluate/batch               ordered decisions for one user
//	GET   /v1/roles                        catalog listing (roles:read)
//	POST  /v1/admin/organizations          create organization
//	GET   /v1/admin/organizations          organizations visible to the actor
//	PATCH /v1/admin/organizations/{id}     {"is_active": false} suspends
//	POST  /v1/admin/users                  create user
//	GET   /v1/admin/users                  users visible to the actor
//	PATCH /v1/admin/users/{id}             {"is_active": false} deactivates
//	POST  /v1/admin/catalog/reload         reload the role catalog
//	GET   /health, /health/live, /health/ready
//	GET   /metrics
//
// Decisions are returned in their public form. A DENY always reads
// "access denied"; the specific reason is logged and audited only.
//
// # Example
//
//	curl -X POST localhost:8080/v1/evaluate -d '{
//	  "user_id": "u-42",
//	  "resource": "users",
//	  "action": "read",
//	  "scope": "organization",
//	  "resource_org_id": "acme"
//	}'
//	{"allowed":true,"role_name":"Supervisor","reason":"granted by users:read:organization"}
//
// # Permission Middleware
//
// PermissionMiddleware gates routes with the evaluator itself:
//
//	pm := api.NewPermissionMiddleware(evaluator, logger)
//	router.Handle("/reports", pm.RequirePermission("reports", "read", permission.ScopeOrganization)(h))
//
// # Related Packages
//
//   - pkg/rbac: Evaluator
//   - pkg/admin: Administrative mutations
//   - pkg/httputil: Response helpers and middleware
package api
