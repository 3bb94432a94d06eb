package rbac

import (
	"errors"

	"github.com/platinummonkey/warden/pkg/permission"
)

var (
	// ErrRoleNotFound is returned when a role id is not in the catalog
	ErrRoleNotFound = errors.New("role not found")

	// ErrCatalogUnavailable is returned when no valid catalog could be loaded
	ErrCatalogUnavailable = errors.New("role catalog unavailable")

	// ErrInvalidCatalog is returned when a catalog definition fails validation
	ErrInvalidCatalog = errors.New("invalid role catalog")
)

const (
	// MinLevel is the lowest privilege level
	MinLevel = 1

	// MaxLevel is the highest privilege level. Roles at this level bypass
	// tenant isolation.
	MaxLevel = 6
)

// Built-in role ids
const (
	RoleSystemSuperAdmin     = "system_super_admin"
	RoleClientAccountManager = "client_account_manager"
	RoleSupervisor           = "supervisor"
	RoleAgentEmployee        = "agent_employee"
	RoleClientEmployee       = "client_employee"
	RoleExternalClientView   = "external_client_view"
)

// DefaultCatalogVersion is the version of the built-in catalog
const DefaultCatalogVersion = "2024.1"

// Role is a named bundle of permissions at a privilege level
type Role struct {
	ID          string                  `json:"id"`
	DisplayName string                  `json:"display_name"`
	Level       int                     `json:"level"`
	Permissions []permission.Permission `json:"permissions"`
}

// IsSuperAdmin reports whether the role sits at the top level
func (r *Role) IsSuperAdmin() bool {
	return r != nil && r.Level >= MaxLevel
}

// RoleDefinition is the serialized form of a role
type RoleDefinition struct {
	ID          string   `json:"id" yaml:"id"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Level       int      `json:"level" yaml:"level"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// Definition is a versioned catalog definition
type Definition struct {
	Version string           `json:"version" yaml:"version"`
	Roles   []RoleDefinition `json:"roles" yaml:"roles"`
}

// DefaultDefinition returns the built-in six level catalog
func DefaultDefinition() *Definition {
	return &Definition{
		Version: DefaultCatalogVersion,
		Roles: []RoleDefinition{
			{
				ID:          RoleSystemSuperAdmin,
				DisplayName: "System Super Admin",
				Level:       6,
				Permissions: []string{"*:*:global"},
			},
			{
				ID:          RoleClientAccountManager,
				DisplayName: "Client Account Manager",
				Level:       5,
				Permissions: []string{
					"users:*:organization",
					"roles:read:organization",
					"data:*:organization",
					"tasks:*:organization",
					"reports:*:organization",
					"settings:*:organization",
					"audit:read:organization",
					"data:*:own",
					"tasks:*:own",
				},
			},
			{
				ID:          RoleSupervisor,
				DisplayName: "Supervisor",
				Level:       4,
				Permissions: []string{
					"users:read:organization",
					"data:*:organization",
					"tasks:*:organization",
					"reports:read:organization",
					"data:*:own",
					"tasks:*:own",
				},
			},
			{
				ID:          RoleAgentEmployee,
				DisplayName: "Agent Employee",
				Level:       3,
				Permissions: []string{
					"data:read:own",
					"tasks:*:own",
				},
			},
			{
				ID:          RoleClientEmployee,
				DisplayName: "Client Employee",
				Level:       2,
				Permissions: []string{
					"data:read:organization",
					"data:read:own",
					"reports:read:own",
				},
			},
			{
				ID:          RoleExternalClientView,
				DisplayName: "External Client View",
				Level:       1,
				Permissions: []string{
					"data:read:own",
					"reports:read:own",
				},
			},
		},
	}
}
