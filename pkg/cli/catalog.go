package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/rbac"
)

// loadCatalog loads path, or the built-in catalog when path is empty
func loadCatalog(ctx context.Context, path string) (*rbac.Catalog, error) {
	if path == "" {
		return rbac.NewCatalog(ctx, rbac.NewStaticSource(rbac.DefaultDefinition()))
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	return rbac.NewCatalog(ctx, rbac.NewFileSource(path, log))
}

func newValidateCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "validate",
		Description: "Validate a role catalog file",
		Flags:       newFlagSet("validate", out),
	}
	catalogPath := cmd.Flags.String("catalog", "", "Catalog YAML or JSON file")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *catalogPath == "" {
			return fmt.Errorf("-catalog is required")
		}

		catalog, err := loadCatalog(context.Background(), *catalogPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "catalog %s is valid: version %s, %d roles\n", *catalogPath, catalog.Version(), catalog.Snapshot().Len())
		return nil
	}

	return cmd
}

func newRolesCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "roles",
		Description: "List the roles of a catalog",
		Flags:       newFlagSet("roles", out),
	}
	catalogPath := cmd.Flags.String("catalog", "", "Catalog file (default: built-in catalog)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		catalog, err := loadCatalog(context.Background(), *catalogPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "catalog version %s\n\n", catalog.Version())

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tROLE\tNAME\tPERMISSIONS")
		for _, role := range catalog.Roles() {
			perms := make([]string, len(role.Permissions))
			for i, p := range role.Permissions {
				perms[i] = p.String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", role.Level, role.ID, role.DisplayName, strings.Join(perms, ", "))
		}
		return w.Flush()
	}

	return cmd
}

func newExportCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "export",
		Description: "Write the built-in catalog as YAML",
		Flags:       newFlagSet("export", out),
	}
	outPath := cmd.Flags.String("out", "", "Output file (default: stdout)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		data, err := rbac.MarshalDefinition(rbac.DefaultDefinition())
		if err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}

		if *outPath == "" {
			_, err = out.Write(data)
			return err
		}
		if err := os.WriteFile(*outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", *outPath, err)
		}
		fmt.Fprintf(out, "wrote catalog version %s to %s\n", rbac.DefaultCatalogVersion, *outPath)
		return nil
	}

	return cmd
}
