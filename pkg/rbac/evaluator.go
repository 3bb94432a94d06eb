package rbac

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
)

// DefaultBatchWorkers bounds concurrent evaluations within one batch
const DefaultBatchWorkers = 8

// DecisionRecorder receives every decision the evaluator produces. It must
// not block.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, actorUserID, orgID string, req permission.Request, resourceOrgID string, decision permission.Decision) bool
}

// Evaluator decides ALLOW or DENY for a user and a request. It holds no
// mutable state of its own and is safe for concurrent use.
type Evaluator struct {
	catalog      *Catalog
	directory    orgs.Directory
	cache        cache.Cache
	recorder     DecisionRecorder
	metrics      *observability.Metrics
	otelMetrics  *observability.OTelMetrics
	logger       *observability.Logger
	now          func() time.Time
	batchWorkers int
	tracer       trace.Tracer
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithCache sets the decision cache
func WithCache(c cache.Cache) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithRecorder sets the audit recorder
func WithRecorder(r DecisionRecorder) Option {
	return func(e *Evaluator) {
		e.recorder = r
	}
}

// WithMetrics sets the Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithOTelMetrics sets the OpenTelemetry instruments
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(e *Evaluator) {
		e.otelMetrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithBatchWorkers sets the batch concurrency limit
func WithBatchWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.batchWorkers = n
		}
	}
}

// NewEvaluator creates an evaluator over catalog and directory
func NewEvaluator(catalog *Catalog, directory orgs.Directory, opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog:      catalog,
		directory:    directory,
		cache:        cache.NewNoop(),
		logger:       observability.NewLogger(observability.InfoLevel, nil),
		now:          func() time.Time { return time.Now().UTC() },
		batchWorkers: DefaultBatchWorkers,
		tracer:       observability.Tracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "evaluator")
	return e
}

// Catalog returns the evaluator's role catalog
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// Directory returns the evaluator's tenant directory
func (e *Evaluator) Directory() orgs.Directory {
	return e.directory
}

type evalOptions struct {
	resourceOrgID string
	bypassCache   bool
}

// EvalOption adjusts a single evaluation
type EvalOption func(*evalOptions)

// ResourceOrganization names the organization that owns the resource.
// Required for organization-scoped requests.
func ResourceOrganization(orgID string) EvalOption {
	return func(o *evalOptions) {
		o.resourceOrgID = orgID
	}
}

// BypassCache forces a fresh evaluation. The result is still stored.
func BypassCache() EvalOption {
	return func(o *evalOptions) {
		o.bypassCache = true
	}
}

// EvaluateUser resolves userID through the directory and evaluates req.
// An unresolvable user is denied.
func (e *Evaluator) EvaluateUser(ctx context.Context, userID string, req permission.Request, opts ...EvalOption) permission.Decision {
	user, ok := e.lookupUser(ctx, userID)
	if !ok {
		return e.denyUnknownUser(ctx, userID, req, collect(opts))
	}
	return e.Evaluate(ctx, *user, req, opts...)
}

func (e *Evaluator) lookupUser(ctx context.Context, userID string) (*orgs.User, bool) {
	user, err := e.directory.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, orgs.ErrUserNotFound) {
			e.logger.WithError(err).WithField("user_id", userID).Warn("Directory lookup failed")
		}
		return nil, false
	}
	return user, true
}

func (e *Evaluator) denyUnknownUser(ctx context.Context, userID string, req permission.Request, o evalOptions) permission.Decision {
	start := time.Now()
	d := permission.Deny(permission.CodeUnknownUser, "", e.now())
	e.finish(ctx, userID, "", req, o, d, start)
	return d
}

// Evaluate decides req for user. It never fails: every problem with the
// input or its context becomes a DENY decision.
func (e *Evaluator) Evaluate(ctx context.Context, user orgs.User, req permission.Request, opts ...EvalOption) permission.Decision {
	start := time.Now()
	o := collect(opts)

	ctx, span := e.tracer.Start(ctx, "rbac.Evaluate", trace.WithAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.role", user.RoleID),
		attribute.String("request", req.String()),
	))
	defer span.End()

	d := e.decide(ctx, user, req, o)

	span.SetAttributes(
		attribute.Bool("decision.allowed", d.Allowed),
		attribute.String("decision.code", string(d.Code)),
		attribute.Bool("decision.cached", d.FromCache),
	)
	e.finish(ctx, user.ID, user.OrgID(), req, o, d, start)
	return d
}

func (e *Evaluator) decide(ctx context.Context, user orgs.User, req permission.Request, o evalOptions) permission.Decision {
	now := e.now()
	snap := e.catalog.Snapshot()

	// the role is needed up front for its level and display name
	role, roleFound := snap.Role(user.RoleID)
	roleName := user.RoleID
	if roleFound {
		roleName = role.DisplayName
	}

	if !user.IsActive {
		return permission.Deny(permission.CodeUserInactive, roleName, now)
	}

	if err := req.Validate(); err != nil {
		return permission.Deny(permission.CodeInvalidRequest, roleName, now)
	}

	superAdmin := roleFound && role.IsSuperAdmin()

	if user.OrganizationID != nil && !superAdmin {
		org, err := e.directory.GetOrganization(ctx, *user.OrganizationID)
		if err != nil {
			if !errors.Is(err, orgs.ErrOrganizationNotFound) {
				e.logger.WithError(err).WithField("organization_id", *user.OrganizationID).Warn("Directory lookup failed")
			}
			return permission.Deny(permission.CodeUnknownOrganization, roleName, now)
		}
		if !org.IsActive {
			return permission.Deny(permission.CodeOrganizationSuspended, roleName, now)
		}
	}

	if !roleFound {
		return permission.Deny(permission.CodeUnknownRole, roleName, now)
	}

	if req.Scope == permission.ScopeOrganization && !superAdmin {
		if o.resourceOrgID == "" || !user.BelongsTo(o.resourceOrgID) {
			return permission.Deny(permission.CodeCrossTenant, roleName, now)
		}
	}

	// ownership of own-scoped resources is filtered by the caller

	key := cache.NewKey(snap.Fingerprint, role.ID, req, o.resourceOrgID)
	if !o.bypassCache {
		if cached, ok := e.cache.Get(ctx, key); ok {
			cached.FromCache = true
			return cached
		}
	}

	d := match(role, req, now)
	e.cache.Put(ctx, key, d)
	return d
}

// match walks the role's permissions in order; the first match grants
func match(role *Role, req permission.Request, now time.Time) permission.Decision {
	for _, p := range role.Permissions {
		if p.Matches(req) {
			return permission.Allow(p, role.DisplayName, now)
		}
	}
	return permission.Deny(permission.CodeNoMatchingPermission, role.DisplayName, now)
}

func (e *Evaluator) finish(ctx context.Context, userID, orgID string, req permission.Request, o evalOptions, d permission.Decision, start time.Time) {
	elapsed := time.Since(start)

	e.metrics.ObserveEvaluation(d.Allowed, string(d.Code), d.FromCache, elapsed)
	e.otelMetrics.RecordEvaluation(ctx, d.Allowed, string(d.Code), d.FromCache, elapsed)

	if !d.Allowed {
		observability.UpdateLoggerWithTraceContext(ctx, e.logger).WithFields(map[string]interface{}{
			"user_id":         userID,
			"organization_id": orgID,
			"request":         req.String(),
			"resource_org_id": o.resourceOrgID,
			"code":            string(d.Code),
			"reason":          d.Reason,
			"request_id":      observability.GetRequestID(ctx),
		}).Debug("Permission denied")
	}

	if e.recorder != nil {
		e.recorder.RecordDecision(ctx, userID, orgID, req, o.resourceOrgID, d)
	}
}

func collect(opts []EvalOption) evalOptions {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
