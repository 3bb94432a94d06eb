package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
)

// BatchItem is one entry of a batch evaluation
type BatchItem struct {
	Request                permission.Request `json:"request"`
	ResourceOrganizationID string             `json:"resource_org_id,omitempty"`
}

// EvaluateBatch evaluates every item for user. Decision i always answers
// items[i]; a DENY in one entry has no effect on the others.
func (e *Evaluator) EvaluateBatch(ctx context.Context, user orgs.User, items []BatchItem) []permission.Decision {
	decisions := make([]permission.Decision, len(items))
	if len(items) == 0 {
		return decisions
	}

	if e.metrics != nil {
		e.metrics.BatchSize.Observe(float64(len(items)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchWorkers)

	for i, item := range items {
		g.Go(func() error {
			decisions[i] = e.Evaluate(gctx, user, item.Request, ResourceOrganization(item.ResourceOrganizationID))
			return nil
		})
	}

	// evaluations never fail, so Wait only joins the workers
	_ = g.Wait()

	return decisions
}

// EvaluateUserBatch resolves userID once and evaluates every item. When the
// user cannot be resolved every entry is denied.
func (e *Evaluator) EvaluateUserBatch(ctx context.Context, userID string, items []BatchItem) []permission.Decision {
	user, ok := e.lookupUser(ctx, userID)
	if !ok {
		decisions := make([]permission.Decision, len(items))
		for i, item := range items {
			decisions[i] = e.denyUnknownUser(ctx, userID, item.Request, evalOptions{resourceOrgID: item.ResourceOrganizationID})
		}
		return decisions
	}

	return e.EvaluateBatch(ctx, *user, items)
}
