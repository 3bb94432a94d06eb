// Package permission implements the resource:action:scope permission grammar.
//
// # Overview
//
// A permission string has exactly three colon-separated segments. Each segment
// is either a lowercase identifier ([a-z_]+) or the wildcard "*". The scope
// segment is drawn from a closed set: own, organization or global.
//
// Permissions live on the role side and may contain wildcards. Requests are the
// concrete tuples callers ask about and never contain wildcards.
//
// # Usage Example
//
// Parse and match:
//
//	p, err := permission.Parse("users:*:organization")
//	if err != nil {
//		return err
//	}
//
//	req := permission.Request{Resource: "users", Action: "delete", Scope: permission.ScopeOrganization}
//	p.Matches(req) // true
//
// Decisions:
//
//	d := permission.Deny(permission.CodeCrossTenant, "Supervisor", time.Now())
//	d.Public() // {allowed:false, role_name:"Supervisor", reason:"access denied"}
//
// # Related Packages
//
//   - pkg/rbac: Role catalog and evaluator built on this grammar
//   - pkg/audit: Records requests and decisions
package permission
