package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

var errDecisionsSingleInput = errors.New("--decisions takes a single input file")

// ParseCmd returns the parse command.
func ParseCmd(a *app) *Command {
	fset := flag.NewFlagSet("parse", flag.ContinueOnError)
	sink := fset.StringP("decisions", "d", "", "Save the parsing decisions in `file`")

	return &Command{
		Flags: fset,
		Usage: "parse [flags] <file>...",
		Short: "Parse files and report validity",
		Long: `Parse each <file> ('-' for stdin) with the template and print its status,
validity and decision count. Validity is the fraction of fields that parsed
without evil decisions.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execParse(ctx, a, o, *sink, args)
		},
	}
}

func execParse(ctx context.Context, a *app, o *IO, sink string, ins []string) error {
	if len(ins) == 0 {
		return errMissingInput
	}

	if sink != "" && len(ins) > 1 {
		return errDecisionsSingleInput
	}

	c, err := a.codec()
	if err != nil {
		return err
	}

	tr := chunk.NewTracker()
	c.SetObserver(tr)

	failed := 0

	for _, in := range ins {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := a.read(in)
		if err != nil {
			return err
		}

		tr.Reset()

		res, err := c.Parse(a.format.Template, data)
		if err != nil {
			a.log.Debug("parse failed", "file", in, "err", err)
			o.Printf("%s: %s validity=%.3f: %v\n", in, codec.StatusOf(err), tr.Validity(), err)

			failed++

			continue
		}

		o.Printf("%s: %s validity=%.3f decisions=%d chunks=%d\n", in, codec.StatusOK, tr.Validity(), len(res.Decisions), len(tr.Chunks()))

		if sink != "" {
			if err := a.write(o, sink, res.Decisions); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", errParseFailed, failed, len(ins))
	}

	return nil
}
