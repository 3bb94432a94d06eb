package cache

import (
	"context"
	"strings"

	"github.com/platinummonkey/warden/pkg/permission"
)

// Backend names used in metrics and stats
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNoop   = "noop"
)

// keyPrefix namespaces decision entries in shared stores
const keyPrefix = "warden:decision"

// noOrganization stands in for the organization segment of keys whose
// scope is not organization
const noOrganization = "-"

// Key identifies a cached decision. It holds only inputs shared by every
// user of a role within one organization and scope, so one entry serves
// all of them. Catalog is the fingerprint of the role snapshot the decision
// was computed under. OrganizationID is set only for organization-scoped
// requests.
type Key struct {
	Catalog        string
	RoleID         string
	Resource       string
	Action         string
	Scope          permission.Scope
	OrganizationID string
}

// NewKey builds the cache key for a request evaluated under roleID.
// The organization is dropped unless the request is organization-scoped.
func NewKey(catalog, roleID string, req permission.Request, orgID string) Key {
	k := Key{
		Catalog:        catalog,
		RoleID:         roleID,
		Resource:       req.Resource,
		Action:         req.Action,
		Scope:          req.Scope,
	}
	if req.Scope == permission.ScopeOrganization {
		k.OrganizationID = orgID
	}
	return k
}

// String renders the key with the organization first so that a whole
// organization can be matched by prefix
func (k Key) String() string {
	return strings.Join([]string{
		keyPrefix,
		k.organization(),
		k.Catalog,
		k.RoleID,
		k.Resource,
		k.Action,
		string(k.Scope),
	}, ":")
}

func (k Key) organization() string {
	if k.OrganizationID == "" {
		return noOrganization
	}
	return k.OrganizationID
}

// Cache stores evaluator output. Implementations must be safe for
// concurrent use. A failing backend behaves as a miss.
type Cache interface {
	// Get returns the cached decision for key
	Get(ctx context.Context, key Key) (permission.Decision, bool)

	// Put stores a decision
	Put(ctx context.Context, key Key, decision permission.Decision)

	// InvalidateAll drops every entry (catalog reload)
	InvalidateAll(ctx context.Context) error

	// InvalidateOrganization drops entries bound to one organization
	InvalidateOrganization(ctx context.Context, orgID string) error

	// Stats returns hit and miss counters
	Stats() Stats
}

// Stats represents cache statistics
type Stats struct {
	Backend   string  `json:"backend"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	ItemCount int64   `json:"item_count"`
}

func newStats(backend string, hits, misses, items int64) Stats {
	s := Stats{Backend: backend, Hits: hits, Misses: misses, ItemCount: items}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Noop is a cache that never stores anything
type Noop struct{}

// NewNoop returns a disabled cache
func NewNoop() *Noop { return &Noop{} }

func (Noop) Get(ctx context.Context, key Key) (permission.Decision, bool) {
	return permission.Decision{}, false
}

func (Noop) Put(ctx context.Context, key Key, decision permission.Decision) {}

func (Noop) InvalidateAll(ctx context.Context) error { return nil }

func (Noop) InvalidateOrganization(ctx context.Context, orgID string) error { return nil }

func (Noop) Stats() Stats { return Stats{Backend: BackendNoop} }
