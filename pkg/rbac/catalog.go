package rbac

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
)

// Snapshot is an immutable, validated view of the catalog
type Snapshot struct {
	Version  string
	LoadedAt time.Time

	// Fingerprint is derived from the role content, not the declared
	// version. Two snapshots share it only if every role grants the same
	// permissions in the same order.
	Fingerprint string

	roles  map[string]*Role
	levels map[int]*Role
}

// BuildSnapshot validates def and builds a snapshot from it. Validation fails
// fast on the first problem.
func BuildSnapshot(def *Definition) (*Snapshot, error) {
	if def == nil || len(def.Roles) == 0 {
		return nil, fmt.Errorf("%w: no roles defined", ErrInvalidCatalog)
	}
	if def.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}

	snap := &Snapshot{
		Version:  def.Version,
		LoadedAt: time.Now().UTC(),
		roles:    make(map[string]*Role, len(def.Roles)),
		levels:   make(map[int]*Role, len(def.Roles)),
	}

	for _, rd := range def.Roles {
		if rd.ID == "" {
			return nil, fmt.Errorf("%w: role id is required", ErrInvalidCatalog)
		}
		if _, exists := snap.roles[rd.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate role id %q", ErrInvalidCatalog, rd.ID)
		}
		if rd.Level < MinLevel || rd.Level > MaxLevel {
			return nil, fmt.Errorf("%w: role %q level %d outside %d..%d", ErrInvalidCatalog, rd.ID, rd.Level, MinLevel, MaxLevel)
		}
		if other, exists := snap.levels[rd.Level]; exists {
			return nil, fmt.Errorf("%w: roles %q and %q share level %d", ErrInvalidCatalog, other.ID, rd.ID, rd.Level)
		}

		perms, err := permission.ParseAll(rd.Permissions)
		if err != nil {
			return nil, fmt.Errorf("%w: role %q: %v", ErrInvalidCatalog, rd.ID, err)
		}

		displayName := rd.DisplayName
		if displayName == "" {
			displayName = rd.ID
		}

		role := &Role{
			ID:          rd.ID,
			DisplayName: displayName,
			Level:       rd.Level,
			Permissions: perms,
		}
		snap.roles[role.ID] = role
		snap.levels[role.Level] = role
	}
	snap.Fingerprint = fingerprint(snap)

	return snap, nil
}

func fingerprint(snap *Snapshot) string {
	ids := make([]string, 0, len(snap.roles))
	for id := range snap.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", snap.Version)
	for _, id := range ids {
		role := snap.roles[id]
		fmt.Fprintf(h, "%s|%s|%d\n", role.ID, role.DisplayName, role.Level)
		for _, p := range role.Permissions {
			fmt.Fprintf(h, "\t%s\n", p)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Role returns the role with the given id
func (s *Snapshot) Role(id string) (*Role, bool) {
	role, ok := s.roles[id]
	return role, ok
}

// Roles returns all roles ordered by level, highest first
func (s *Snapshot) Roles() []*Role {
	roles := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].Level > roles[j].Level
	})
	return roles
}

// Len returns the number of roles
func (s *Snapshot) Len() int {
	return len(s.roles)
}

// ReloadFunc is called after a new snapshot has been installed
type ReloadFunc func(snap *Snapshot)

// Catalog serves the current role snapshot. Readers never block; a reload
// builds a complete snapshot and swaps it in atomically, so evaluators see
// either the old catalog or the new one.
type Catalog struct {
	source  DefinitionSource
	current atomic.Pointer[Snapshot]
	metrics *observability.Metrics

	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []ReloadFunc
}

// CatalogOption configures a Catalog
type CatalogOption func(*Catalog)

// WithCatalogMetrics records reload outcomes to metrics
func WithCatalogMetrics(metrics *observability.Metrics) CatalogOption {
	return func(c *Catalog) {
		c.metrics = metrics
	}
}

// NewCatalog loads the initial snapshot from src. Any failure is wrapped in
// ErrCatalogUnavailable and the process is expected to abort.
func NewCatalog(ctx context.Context, src DefinitionSource, opts ...CatalogOption) (*Catalog, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no definition source", ErrCatalogUnavailable)
	}

	c := &Catalog{source: src}
	for _, opt := range opts {
		opt(c)
	}

	snap, err := c.load(ctx)
	c.metrics.ObserveCatalogReload(err, snapLen(snap))
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)

	return c, nil
}

// MustDefaultCatalog returns a catalog holding the built-in definition
func MustDefaultCatalog() *Catalog {
	c, err := NewCatalog(context.Background(), NewStaticSource(DefaultDefinition()))
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) load(ctx context.Context) (*Snapshot, error) {
	def, err := c.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	snap, err := BuildSnapshot(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return snap, nil
}

// Reload loads and validates a new snapshot and swaps it in. On failure the
// previous snapshot stays in place.
func (c *Catalog) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	snap, err := c.load(ctx)
	c.metrics.ObserveCatalogReload(err, snapLen(snap))
	if err != nil {
		return err
	}
	c.current.Store(snap)

	c.hooksMu.RLock()
	hooks := append([]ReloadFunc(nil), c.hooks...)
	c.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(snap)
	}

	return nil
}

// OnReload registers fn to run after every successful reload
func (c *Catalog) OnReload(fn ReloadFunc) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Snapshot returns the current snapshot
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Version returns the current catalog version
func (c *Catalog) Version() string {
	return c.Snapshot().Version
}

// GetRole returns the role with the given id
func (c *Catalog) GetRole(id string) (*Role, error) {
	role, ok := c.Snapshot().Role(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	return role, nil
}

// LevelOf returns the level of the role with the given id
func (c *Catalog) LevelOf(id string) (int, error) {
	role, err := c.GetRole(id)
	if err != nil {
		return 0, err
	}
	return role.Level, nil
}

// CanManage reports whether a holder of role a may administer a holder of
// role b. Equal levels may not manage each other.
func (c *Catalog) CanManage(a, b string) (bool, error) {
	snap := c.Snapshot()

	ra, ok := snap.Role(a)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRoleNotFound, a)
	}
	rb, ok := snap.Role(b)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRoleNotFound, b)
	}

	return ra.Level > rb.Level, nil
}

// Roles returns all roles ordered by level, highest first
func (c *Catalog) Roles() []*Role {
	return c.Snapshot().Roles()
}

func snapLen(snap *Snapshot) int {
	if snap == nil {
		return 0
	}
	return snap.Len()
}
