package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/internal/fs"
)

// FuzzCmd returns the fuzz command.
func FuzzCmd(a *app) *Command {
	fset := flag.NewFlagSet("fuzz", flag.ContinueOnError)
	decisions := fset.StringP("decisions", "d", "", "Read generation decisions from `file` (default: kernel random source)")

	return &Command{
		Flags: fset,
		Usage: "fuzz [flags] <out>...",
		Short: "Generate random files",
		Long: `Generate one file per <out> argument ('-' for stdout) from random decisions.
With --decisions every output is generated from the same decision file.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execFuzz(ctx, a, o, *decisions, args)
		},
	}
}

func execFuzz(ctx context.Context, a *app, o *IO, source string, outs []string) error {
	if len(outs) == 0 {
		return errMissingOutput
	}

	c, err := a.codec()
	if err != nil {
		return err
	}

	src := ""
	if source != "" {
		src = a.path(source)
	}

	failed := 0

	for _, out := range outs {
		if err := ctx.Err(); err != nil {
			return err
		}

		decisions, err := fs.ReadDecisions(a.fs, src, a.cfg.DecisionCapacity)
		if err != nil {
			return err
		}

		res, err := c.Generate(a.format.Template, decisions)
		if err != nil {
			a.log.Debug("generate failed", "out", out, "err", err)
			o.ErrPrintln(out, "failed:", err)

			failed++

			continue
		}

		if err := a.write(o, out, res.File); err != nil {
			return err
		}

		if out != stdio {
			o.ErrPrintf("%s created (%d bytes, %d decisions)\n", out, len(res.File), len(res.Decisions))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outs))
	}

	return nil
}
