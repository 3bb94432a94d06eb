// Package cli implements the warden-check command-line tool.
//
// # Overview
//
// warden-check validates role catalog files before they are deployed and
// answers permission questions either offline, against a catalog file, or
// online, against a running warden server.
//
// # Commands
//
// validate: Parse and validate a catalog file
//
//	warden-check validate -catalog roles.yaml
//
// roles: List the roles of a catalog (default: built-in)
//
//	warden-check roles -catalog roles.yaml
//
// check: Evaluate a request for a role offline. This is the default command,
// so the subcommand name may be omitted.
//
//	warden-check -catalog roles.yaml -role supervisor -permission users:read:organization
//	ALLOW supervisor users:read:organization: granted by users:read:organization
//
// evaluate: Ask a running server
//
//	warden-check evaluate -server http://warden:8080 -user u-42 -permission data:read:own
//
// export: Write the built-in catalog as YAML, a starting point for custom
// catalogs
//
//	warden-check export -out roles.yaml
//
// # Exit Codes
//
// 0 on success, 2 when the evaluated request is denied (ErrDenied), 1 on any
// other error.
//
// # Related Packages
//
//   - pkg/rbac: Catalog and evaluator
//   - pkg/api: Server request and response types
package cli
