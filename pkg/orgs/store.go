package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// SQLStore persists organizations and users in a SQL database.
// Queries use $N placeholders and portable column types.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// EnsureSchema creates the directory tables if they do not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		plan TEXT NOT NULL,
		is_active BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		organization_id TEXT REFERENCES organizations(id),
		role_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure directory schema: %w", err)
	}
	return nil
}

// CreateOrganization inserts a new organization
func (s *SQLStore) CreateOrganization(ctx context.Context, org *Organization) error {
	now := s.now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	query := `
		INSERT INTO organizations (id, name, plan, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, org.ID, org.Name, string(org.Plan), org.IsActive, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return mapWriteError(fmt.Sprintf("organization %s", org.ID), err)
	}
	return nil
}

// SetOrganizationActive updates an organization's active flag
func (s *SQLStore) SetOrganizationActive(ctx context.Context, orgID string, active bool) error {
	query := `UPDATE organizations SET is_active = $1, updated_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, query, active, s.now().UTC(), orgID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return requireRow(res, fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID))
}

// GetOrganization retrieves an organization by id
func (s *SQLStore) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	query := `
		SELECT id, name, plan, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	var plan string
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&org.ID, &org.Name, &plan, &org.IsActive, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.Plan = PlanTier(plan)
	return org, nil
}

// ListOrganizations returns every organization ordered by id
func (s *SQLStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	query := `
		SELECT id, name, plan, is_active, created_at, updated_at
		FROM organizations
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		var org Organization
		var plan string
		if err := rows.Scan(&org.ID, &org.Name, &plan, &org.IsActive, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.Plan = PlanTier(plan)
		out = append(out, org)
	}
	return out, rows.Err()
}

// CreateUser inserts a new user
func (s *SQLStore) CreateUser(ctx context.Context, u *User) error {
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (id, organization_id, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, nullString(u.OrganizationID), u.RoleID, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapWriteError(fmt.Sprintf("user %s", u.ID), err)
	}
	return nil
}

// SetUserActive updates a user's active flag
func (s *SQLStore) SetUserActive(ctx context.Context, userID string, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, query, active, s.now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res, fmt.Errorf("%w: %s", ErrUserNotFound, userID))
}

// GetUser retrieves a user by id
func (s *SQLStore) GetUser(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT id, organization_id, role_id, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	u := &User{}
	var orgID sql.NullString
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID, &orgID, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if orgID.Valid {
		u.OrganizationID = &orgID.String
	}
	return u, nil
}

// ListUsers returns every user ordered by id
func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	query := `
		SELECT id, organization_id, role_id, is_active, created_at, updated_at
		FROM users
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var orgID sql.NullString
		if err := rows.Scan(&u.ID, &orgID, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if orgID.Valid {
			id := orgID.String
			u.OrganizationID = &id
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SameOrganization reports whether both users belong to one organization
func (s *SQLStore) SameOrganization(ctx context.Context, userA, userB string) (bool, error) {
	a, err := s.GetUser(ctx, userA)
	if err != nil {
		return false, err
	}
	b, err := s.GetUser(ctx, userB)
	if err != nil {
		return false, err
	}
	if a.OrganizationID == nil || b.OrganizationID == nil {
		return false, nil
	}
	return *a.OrganizationID == *b.OrganizationID, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func mapWriteError(what string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, ErrAlreadyExists)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}
