package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "ffz" in help.
	// Includes the command name and arguments/flags.
	// Examples: "parse [flags] <file>...", "delete [flags] <out>"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// FailCode is the exit code for errors returned by Exec.
	// Zero means 1.
	FailCode int

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// exitStatus ends a command with the given exit code without printing
// an error.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-30s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "ffz <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: ffz", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
// Handles error printing internally for consistent output ordering.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	fail := c.FailCode
	if fail == 0 {
		fail = 1
	}

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.printHelpTo(o)

		return fail
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err == nil {
		return 0
	}

	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}

	o.ErrPrintln("error:", err)

	return fail
}

// printHelpTo prints the help to stderr after a usage error.
func (c *Command) printHelpTo(o *IO) {
	o.ErrPrintln("Usage: ffz", c.Usage)

	if c.Flags.HasFlags() {
		o.ErrPrintln()
		o.ErrPrintln("Flags:")
		o.ErrPrintf("%s", c.Flags.FlagUsages())
	}
}
