package orgs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrOrganizationNotFound is returned when an organization does not exist
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrAlreadyExists is returned when creating a record whose id is taken
	ErrAlreadyExists = errors.New("already exists")
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
	PlanCustom     PlanTier = "custom"
)

// Valid reports whether the plan tier is known
func (p PlanTier) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise, PlanCustom:
		return true
	}
	return false
}

// Organization is an isolated tenant
type Organization struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Plan      PlanTier  `json:"plan" yaml:"plan"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// User is a principal. OrganizationID is nil only for organization-agnostic
// super administrators.
type User struct {
	ID             string    `json:"id" yaml:"id"`
	OrganizationID *string   `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	RoleID         string    `json:"role_id" yaml:"role_id"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// OrgID returns the user's organization id or "" when the user has none
func (u User) OrgID() string {
	if u.OrganizationID == nil {
		return ""
	}
	return *u.OrganizationID
}

// BelongsTo reports whether the user is a member of orgID
func (u User) BelongsTo(orgID string) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Directory resolves users and organizations for evaluation
type Directory interface {
	// GetUser returns the user with the given id
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetOrganization returns the organization with the given id
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)

	// SameOrganization reports whether both users belong to the same organization
	SameOrganization(ctx context.Context, userA, userB string) (bool, error)
}

// StatusChangeFunc is called when an organization's active flag flips
type StatusChangeFunc func(orgID string, active bool)
