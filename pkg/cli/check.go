package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/permission"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// offlineUserID names the synthetic user of an offline check
const offlineUserID = "warden-check"

func newCheckCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Validate a catalog and optionally evaluate a request offline",
		Flags:       newFlagSet("check", out),
	}
	catalogPath := cmd.Flags.String("catalog", "", "Catalog file (default: built-in catalog)")
	roleID := cmd.Flags.String("role", "", "Role to evaluate as")
	perm := cmd.Flags.String("permission", "", "Request as resource:action:scope")
	orgID := cmd.Flags.String("org", "local", "Organization of the evaluating user")
	resourceOrg := cmd.Flags.String("resource-org", "", "Organization owning the resource (default: -org)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		ctx := context.Background()
		catalog, err := loadCatalog(ctx, *catalogPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "catalog version %s: %d roles\n", catalog.Version(), catalog.Snapshot().Len())

		if *roleID == "" && *perm == "" {
			return nil
		}
		if *roleID == "" || *perm == "" {
			return fmt.Errorf("-role and -permission must be given together")
		}

		req, err := permission.ParseRequest(*perm)
		if err != nil {
			return err
		}
		if *resourceOrg == "" {
			*resourceOrg = *orgID
		}

		decision, err := evaluateOffline(ctx, catalog, *roleID, *orgID, req, *resourceOrg)
		if err != nil {
			return err
		}
		return printDecision(out, *roleID, req, decision.Allowed, decision.Reason)
	}

	return cmd
}

// evaluateOffline runs the evaluator against a one-user directory
func evaluateOffline(ctx context.Context, catalog *rbac.Catalog, roleID, orgID string, req permission.Request, resourceOrg string) (permission.Decision, error) {
	dir := orgs.NewMemoryDirectory()
	dir.PutOrganization(orgs.Organization{ID: orgID, Name: orgID, Plan: orgs.PlanFree, IsActive: true})

	user := orgs.User{ID: offlineUserID, OrganizationID: orgs.StringPtr(orgID), RoleID: roleID, IsActive: true}
	if err := dir.PutUser(user); err != nil {
		return permission.Decision{}, err
	}

	evaluator := rbac.NewEvaluator(catalog, dir)
	return evaluator.Evaluate(ctx, user, req, rbac.ResourceOrganization(resourceOrg)), nil
}

func printDecision(out io.Writer, subject string, req permission.Request, allowed bool, reason string) error {
	verdict := "DENY"
	if allowed {
		verdict = "ALLOW"
	}
	fmt.Fprintf(out, "%s %s %s: %s\n", verdict, subject, req, reason)
	if !allowed {
		return ErrDenied
	}
	return nil
}

func newEvaluateCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "evaluate",
		Description: "Ask a running warden server for a decision",
		Flags:       newFlagSet("evaluate", out),
	}
	server := cmd.Flags.String("server", "http://localhost:8080", "Warden server URL")
	userID := cmd.Flags.String("user", "", "User id")
	perm := cmd.Flags.String("permission", "", "Request as resource:action:scope")
	resourceOrg := cmd.Flags.String("resource-org", "", "Organization owning the resource")
	timeout := cmd.Flags.Duration("timeout", 10*time.Second, "Request timeout")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == "" || *perm == "" {
			return fmt.Errorf("-user and -permission are required")
		}

		req, err := permission.ParseRequest(*perm)
		if err != nil {
			return err
		}

		body, err := json.Marshal(api.EvaluateRequest{
			UserID:                 *userID,
			Resource:               req.Resource,
			Action:                 req.Action,
			Scope:                  req.Scope,
			ResourceOrganizationID: *resourceOrg,
		})
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		client := &http.Client{Timeout: *timeout}
		resp, err := client.Post(strings.TrimRight(*server, "/")+"/v1/evaluate", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to reach server: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		}

		var decision permission.PublicDecision
		if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return printDecision(out, *userID, req, decision.Allowed, decision.Reason)
	}

	return cmd
}
