package orgs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryDirectory is a read-mostly in-process directory snapshot
type MemoryDirectory struct {
	mu    sync.RWMutex
	orgs  map[string]Organization
	users map[string]User
	hooks []StatusChangeFunc
	now   func() time.Time

	// generation counts mutations; guarded by mu
	generation uint64
}

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		orgs:  make(map[string]Organization),
		users: make(map[string]User),
		now:   time.Now,
	}
}

// OnOrganizationStatusChange registers a hook fired after an organization is
// activated or suspended
func (d *MemoryDirectory) OnOrganizationStatusChange(fn StatusChangeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// GetUser returns a copy of the user
func (d *MemoryDirectory) GetUser(ctx context.Context, userID string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return copyUser(u), nil
}

// GetOrganization returns a copy of the organization
func (d *MemoryDirectory) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	org, ok := d.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
	}
	return &org, nil
}

// SameOrganization reports whether both users belong to one organization.
// Users without an organization never share one.
func (d *MemoryDirectory) SameOrganization(ctx context.Context, userA, userB string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.users[userA]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUserNotFound, userA)
	}
	b, ok := d.users[userB]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUserNotFound, userB)
	}
	if a.OrganizationID == nil || b.OrganizationID == nil {
		return false, nil
	}
	return *a.OrganizationID == *b.OrganizationID, nil
}

// PutOrganization inserts or replaces an organization
func (d *MemoryDirectory) PutOrganization(org Organization) {
	if org.CreatedAt.IsZero() {
		org.CreatedAt = d.now()
	}
	if org.UpdatedAt.IsZero() {
		org.UpdatedAt = org.CreatedAt
	}

	d.mu.Lock()
	prev, existed := d.orgs[org.ID]
	d.orgs[org.ID] = org
	d.generation++
	hooks := d.hooks
	d.mu.Unlock()

	if existed && prev.IsActive != org.IsActive {
		fire(hooks, org.ID, org.IsActive)
	}
}

// SetOrganizationActive activates or suspends an organization
func (d *MemoryDirectory) SetOrganizationActive(orgID string, active bool) error {
	d.mu.Lock()
	org, ok := d.orgs[orgID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
	}
	changed := org.IsActive != active
	org.IsActive = active
	org.UpdatedAt = d.now()
	d.orgs[orgID] = org
	d.generation++
	hooks := d.hooks
	d.mu.Unlock()

	if changed {
		fire(hooks, orgID, active)
	}
	return nil
}

// PutUser inserts or replaces a user. The user's organization must exist.
func (d *MemoryDirectory) PutUser(u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = d.now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if u.OrganizationID != nil {
		if _, ok := d.orgs[*u.OrganizationID]; !ok {
			return fmt.Errorf("%w: %s", ErrOrganizationNotFound, *u.OrganizationID)
		}
	}
	d.users[u.ID] = *copyUser(u)
	d.generation++
	return nil
}

// SetUserActive activates or deactivates a user
func (d *MemoryDirectory) SetUserActive(userID string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	u.IsActive = active
	u.UpdatedAt = d.now()
	d.users[userID] = u
	d.generation++
	return nil
}

// Generation returns a counter that changes on every mutation
func (d *MemoryDirectory) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// Replace swaps the whole snapshot. Status hooks fire for every organization
// whose active flag differs from the previous snapshot, and for organizations
// that disappeared.
func (d *MemoryDirectory) Replace(orgs []Organization, users []User) {
	d.replace(orgs, users, nil)
}

// ReplaceIfUnchanged swaps the snapshot only if no mutation happened since
// Generation returned gen. It reports whether the swap took place.
func (d *MemoryDirectory) ReplaceIfUnchanged(gen uint64, orgs []Organization, users []User) bool {
	return d.replace(orgs, users, func() bool { return d.generation == gen })
}

// replace swaps the snapshot unless admit, checked under the write lock,
// returns false
func (d *MemoryDirectory) replace(orgs []Organization, users []User, admit func() bool) bool {
	nextOrgs := make(map[string]Organization, len(orgs))
	for _, org := range orgs {
		nextOrgs[org.ID] = org
	}
	nextUsers := make(map[string]User, len(users))
	for _, u := range users {
		nextUsers[u.ID] = *copyUser(u)
	}

	d.mu.Lock()
	if admit != nil && !admit() {
		d.mu.Unlock()
		return false
	}
	prev := d.orgs
	d.orgs = nextOrgs
	d.users = nextUsers
	d.generation++
	hooks := d.hooks
	d.mu.Unlock()

	for id, old := range prev {
		next, ok := nextOrgs[id]
		switch {
		case !ok:
			fire(hooks, id, false)
		case next.IsActive != old.IsActive:
			fire(hooks, id, next.IsActive)
		}
	}
	return true
}

// ListOrganizations returns all organizations ordered by id
func (d *MemoryDirectory) ListOrganizations() []Organization {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Organization, 0, len(d.orgs))
	for _, org := range d.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListUsers returns users ordered by id. An empty orgID lists every user.
func (d *MemoryDirectory) ListUsers(orgID string) []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		if orgID != "" && !u.BelongsTo(orgID) {
			continue
		}
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func fire(hooks []StatusChangeFunc, orgID string, active bool) {
	for _, fn := range hooks {
		fn(orgID, active)
	}
}

func copyUser(u User) *User {
	if u.OrganizationID != nil {
		id := *u.OrganizationID
		u.OrganizationID = &id
	}
	return &u
}
