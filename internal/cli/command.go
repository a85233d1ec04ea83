package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the command tree. Leaf commands set Run; groups
// set Subcommands.
type Command struct {
	Name    string
	Summary string
	Usage   string

	// Flags is called once per execution, so Run closures can bind to
	// fresh variables.
	Flags       func() *pflag.FlagSet
	Subcommands []*Command
	Run         func(ctx context.Context, flags *pflag.FlagSet, args []string) error

	parent *Command
}

func (c *Command) Execute(ctx context.Context, stderr io.Writer, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(stderr)
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				sub.parent = c
				return sub.Execute(ctx, stderr, args[1:])
			}
		}
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.fullName())
	}

	if c.Run == nil {
		c.PrintHelp(stderr)
		return fmt.Errorf("subcommand required")
	}

	flagSet := pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	if c.Flags != nil {
		flagSet = c.Flags()
	}
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			c.PrintHelp(stderr)
			return nil
		}
		return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
	}
	return c.Run(ctx, flagSet, flagSet.Args())
}

func (c *Command) PrintHelp(w io.Writer) {
	if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}
	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", c.fullName())
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", c.fullName())
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		var help strings.Builder
		flagSet := c.Flags()
		flagSet.SetOutput(&help)
		flagSet.PrintDefaults()
		if help.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", help.String())
		}
	}
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
