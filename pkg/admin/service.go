package admin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

var (
	// ErrForbidden is returned when the actor may not perform the mutation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned when a mutation request is malformed
	ErrInvalidInput = errors.New("invalid input")
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,62}$`)

// Recorder receives administrative audit records
type Recorder interface {
	RecordAdmin(ctx context.Context, kind audit.Kind, actorUserID, orgID, target, message string) bool
}

// Store persists directory mutations. *orgs.SQLStore satisfies it.
type Store interface {
	CreateOrganization(ctx context.Context, org *orgs.Organization) error
	SetOrganizationActive(ctx context.Context, orgID string, active bool) error
	CreateUser(ctx context.Context, u *orgs.User) error
	SetUserActive(ctx context.Context, userID string, active bool) error
}

// CreateOrganizationInput describes a new organization
type CreateOrganizationInput struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Plan orgs.PlanTier `json:"plan"`
}

// CreateUserInput describes a new user
type CreateUserInput struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	RoleID         string `json:"role_id"`
}

// Service applies administrative mutations to the tenant directory and the
// role catalog. Every mutation is authorized against the acting user:
// organizations and the catalog belong to super administrators, and users
// may only be managed by holders of a strictly higher role level within the
// same organization.
type Service struct {
	catalog   *rbac.Catalog
	directory *orgs.MemoryDirectory
	store     Store
	recorder  Recorder
	logger    *observability.Logger
}

// Option configures a Service
type Option func(*Service)

// WithStore persists mutations before they reach the in-memory directory
func WithStore(store Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithRecorder records every successful mutation
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an administrative service
func NewService(catalog *rbac.Catalog, directory *orgs.MemoryDirectory, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		directory: directory,
		logger:    observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "admin")
	return s
}

// actor is the resolved acting user
type actor struct {
	user orgs.User
	role *rbac.Role
}

func (a actor) superAdmin() bool {
	return a.role.IsSuperAdmin()
}

// canSee reports whether the actor may see records of orgID
func (a actor) canSee(orgID string) bool {
	return a.superAdmin() || (orgID != "" && a.user.BelongsTo(orgID))
}

func (s *Service) resolveActor(ctx context.Context, actorID string) (actor, error) {
	if actorID == "" {
		return actor{}, fmt.Errorf("%w: actor is required", ErrForbidden)
	}

	u, err := s.directory.GetUser(ctx, actorID)
	if err != nil {
		return actor{}, fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	if !u.IsActive {
		return actor{}, fmt.Errorf("%w: actor inactive", ErrForbidden)
	}

	role, err := s.catalog.GetRole(u.RoleID)
	if err != nil {
		return actor{}, fmt.Errorf("%w: actor role unknown", ErrForbidden)
	}

	if !role.IsSuperAdmin() {
		org, err := s.directory.GetOrganization(ctx, u.OrgID())
		if err != nil || !org.IsActive {
			return actor{}, fmt.Errorf("%w: actor organization unavailable", ErrForbidden)
		}
	}

	return actor{user: *u, role: role}, nil
}

func (s *Service) requireSuperAdmin(ctx context.Context, actorID string) (actor, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return actor{}, err
	}
	if !a.superAdmin() {
		return actor{}, fmt.Errorf("%w: requires %s", ErrForbidden, rbac.RoleSystemSuperAdmin)
	}
	return a, nil
}

// CreateOrganization creates an active organization
func (s *Service) CreateOrganization(ctx context.Context, actorID string, in CreateOrganizationInput) (*orgs.Organization, error) {
	a, err := s.requireSuperAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.Plan == "" {
		in.Plan = orgs.PlanFree
	}

	if !idPattern.MatchString(in.ID) {
		return nil, fmt.Errorf("%w: invalid organization id %q", ErrInvalidInput, in.ID)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	if !in.Plan.Valid() {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, in.Plan)
	}

	if _, err := s.directory.GetOrganization(ctx, in.ID); err == nil {
		return nil, fmt.Errorf("organization %s: %w", in.ID, orgs.ErrAlreadyExists)
	}

	org := orgs.Organization{
		ID:       in.ID,
		Name:     in.Name,
		Plan:     in.Plan,
		IsActive: true,
	}

	if s.store != nil {
		if err := s.store.CreateOrganization(ctx, &org); err != nil {
			return nil, err
		}
	}
	s.directory.PutOrganization(org)

	s.record(ctx, audit.KindOrgCreate, a, org.ID, org.ID, fmt.Sprintf("created organization %s (%s, plan %s)", org.ID, org.Name, org.Plan))
	s.logger.WithFields(map[string]interface{}{
		"actor_id":        a.user.ID,
		"organization_id": org.ID,
	}).Info("Organization created")

	return s.directory.GetOrganization(ctx, org.ID)
}

// SetOrganizationActive activates or suspends an organization. Suspension
// denies every member below the super administrator level and invalidates
// the organization's cached decisions.
func (s *Service) SetOrganizationActive(ctx context.Context, actorID, orgID string, active bool) (*orgs.Organization, error) {
	a, err := s.requireSuperAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.directory.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SetOrganizationActive(ctx, orgID, active); err != nil {
			return nil, err
		}
	}
	if err := s.directory.SetOrganizationActive(orgID, active); err != nil {
		return nil, err
	}

	s.record(ctx, audit.KindOrgStatusChange, a, orgID, orgID, statusMessage("organization", orgID, active))

	return s.directory.GetOrganization(ctx, orgID)
}

// CreateUser creates an active user. The actor must outrank the new user's
// role, and non super administrators may only create users in their own
// organization.
func (s *Service) CreateUser(ctx context.Context, actorID string, in CreateUserInput) (*orgs.User, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	in.ID = strings.TrimSpace(in.ID)
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)

	if !idPattern.MatchString(in.ID) {
		return nil, fmt.Errorf("%w: invalid user id %q", ErrInvalidInput, in.ID)
	}

	role, err := s.catalog.GetRole(in.RoleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.OrganizationID == "" && !role.IsSuperAdmin() {
		return nil, fmt.Errorf("%w: organization is required for role %s", ErrInvalidInput, role.ID)
	}

	if in.OrganizationID != "" {
		if !a.canSee(in.OrganizationID) {
			return nil, fmt.Errorf("%w: %s", orgs.ErrOrganizationNotFound, in.OrganizationID)
		}
		if _, err := s.directory.GetOrganization(ctx, in.OrganizationID); err != nil {
			return nil, err
		}
	}

	ok, err := s.catalog.CanManage(a.role.ID, role.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot manage %s", ErrForbidden, a.role.ID, role.ID)
	}

	if _, err := s.directory.GetUser(ctx, in.ID); err == nil {
		return nil, fmt.Errorf("user %s: %w", in.ID, orgs.ErrAlreadyExists)
	}

	u := orgs.User{
		ID:             in.ID,
		OrganizationID: orgs.StringPtr(in.OrganizationID),
		RoleID:         role.ID,
		IsActive:       true,
	}

	if s.store != nil {
		if err := s.store.CreateUser(ctx, &u); err != nil {
			return nil, err
		}
	}
	if err := s.directory.PutUser(u); err != nil {
		return nil, err
	}

	s.record(ctx, audit.KindUserCreate, a, u.OrgID(), u.ID, fmt.Sprintf("created user %s with role %s", u.ID, u.RoleID))

	return s.directory.GetUser(ctx, u.ID)
}

// SetUserActive activates or deactivates a user. Users outside the actor's
// organization are reported as not found.
func (s *Service) SetUserActive(ctx context.Context, actorID, userID string, active bool) (*orgs.User, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	target, err := s.visibleUser(ctx, a, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.catalog.CanManage(a.role.ID, target.RoleID)
	if err != nil && !errors.Is(err, rbac.ErrRoleNotFound) {
		return nil, err
	}
	// a user holding a role the catalog no longer knows is manageable by super admins only
	if errors.Is(err, rbac.ErrRoleNotFound) {
		ok = a.superAdmin()
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot manage %s", ErrForbidden, a.role.ID, target.RoleID)
	}

	if s.store != nil {
		if err := s.store.SetUserActive(ctx, userID, active); err != nil {
			return nil, err
		}
	}
	if err := s.directory.SetUserActive(userID, active); err != nil {
		return nil, err
	}

	s.record(ctx, audit.KindUserStatusChange, a, target.OrgID(), userID, statusMessage("user", userID, active))

	return s.directory.GetUser(ctx, userID)
}

// ListUsers returns the users visible to the actor
func (s *Service) ListUsers(ctx context.Context, actorID string) ([]orgs.User, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if a.superAdmin() {
		return s.directory.ListUsers(""), nil
	}
	return s.directory.ListUsers(a.user.OrgID()), nil
}

// ListOrganizations returns the organizations visible to the actor
func (s *Service) ListOrganizations(ctx context.Context, actorID string) ([]orgs.Organization, error) {
	a, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if a.superAdmin() {
		return s.directory.ListOrganizations(), nil
	}
	org, err := s.directory.GetOrganization(ctx, a.user.OrgID())
	if err != nil {
		return nil, err
	}
	return []orgs.Organization{*org}, nil
}

// ReloadCatalog reloads the role catalog from its source and returns the
// version now in effect
func (s *Service) ReloadCatalog(ctx context.Context, actorID string) (string, error) {
	a, err := s.requireSuperAdmin(ctx, actorID)
	if err != nil {
		return "", err
	}

	previous := s.catalog.Version()
	if err := s.catalog.Reload(ctx); err != nil {
		s.logger.WithError(err).Error("Catalog reload failed")
		return previous, err
	}

	version := s.catalog.Version()
	s.record(ctx, audit.KindCatalogReload, a, "", version, fmt.Sprintf("catalog reloaded from %s to %s", previous, version))

	return version, nil
}

func (s *Service) visibleUser(ctx context.Context, a actor, userID string) (*orgs.User, error) {
	u, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !a.canSee(u.OrgID()) {
		return nil, fmt.Errorf("%w: %s", orgs.ErrUserNotFound, userID)
	}
	return u, nil
}

func (s *Service) record(ctx context.Context, kind audit.Kind, a actor, orgID, target, message string) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordAdmin(ctx, kind, a.user.ID, orgID, target, message)
}

func statusMessage(what, id string, active bool) string {
	if active {
		return fmt.Sprintf("activated %s %s", what, id)
	}
	return fmt.Sprintf("suspended %s %s", what, id)
}
