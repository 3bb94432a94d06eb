package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrDenied is returned by commands whose evaluated request was denied
var ErrDenied = errors.New("request denied")

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	// Default runs when the first argument is a flag rather than a
	// subcommand name
	Default string

	out io.Writer
}

// NewRootCommand creates the root command writing to stdout
func NewRootCommand() *Command {
	return NewRootCommandWithOutput(os.Stdout)
}

// NewRootCommandWithOutput creates the root command writing to out
func NewRootCommandWithOutput(out io.Writer) *Command {
	root := &Command{
		Name:        "warden-check",
		Description: "Warden - offline role catalog validation and permission checks",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("warden-check", flag.ContinueOnError),
		Default:     "check",
		out:         out,
	}

	for _, cmd := range []*Command{
		newValidateCommand(out),
		newRolesCommand(out),
		newCheckCommand(out),
		newEvaluateCommand(out),
		newExportCommand(out),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with the given arguments
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	if strings.HasPrefix(args[0], "-") && c.Default != "" {
		return c.Subcommands[c.Default].Run(args)
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet builds a flag set that reports errors instead of exiting
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	return flags
}
