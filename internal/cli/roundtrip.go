package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/internal/fs"
)

var errRoundTrip = errors.New("round trip failed")

// TestCmd returns the test command.
func TestCmd(a *app) *Command {
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	iterations := fset.IntP("count", "n", 10000, "Number of random decision streams to try")

	return &Command{
		Flags: fset,
		Usage: "test [flags]",
		Short: "Check that generated files parse and regenerate identically",
		Long: `Generate files from random decisions, parse each one back and regenerate it
from the parsed decisions. The regenerated file must equal the original.
On the first mismatch the artefacts are written to r0 (decisions), f0 (file),
r1 (parsed decisions) and f1 (regenerated file).`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execTest(ctx, a, o, *iterations)
		},
	}
}

func execTest(ctx context.Context, a *app, o *IO, iterations int) error {
	c, err := a.codec()
	if err != nil {
		return err
	}

	start := time.Now()
	generated := 0

	var parseTime time.Duration

	for i := range iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		r0, err := fs.RandomDecisions(a.cfg.DecisionCapacity)
		if err != nil {
			return err
		}

		gen, err := c.Generate(a.format.Template, r0)
		if err != nil || len(gen.File) == 0 {
			continue
		}

		generated++

		before := time.Now()
		parsed, err := c.Parse(a.format.Template, gen.File)
		parseTime += time.Since(before)

		if err != nil {
			return a.dumpRoundTrip(o, i, fmt.Errorf("%w: parse: %w", errRoundTrip, err), r0, gen.File, nil, nil)
		}

		again, err := c.Generate(a.format.Template, parsed.Decisions)
		if err != nil {
			return a.dumpRoundTrip(o, i, fmt.Errorf("%w: regenerate: %w", errRoundTrip, err), r0, gen.File, parsed.Decisions, nil)
		}

		if !bytes.Equal(gen.File, again.File) {
			return a.dumpRoundTrip(o, i, fmt.Errorf("%w: regenerated file differs from original", errRoundTrip), r0, gen.File, parsed.Decisions, again.File)
		}
	}

	rate := 0.0
	if parseTime > 0 {
		rate = float64(generated) / parseTime.Seconds()
	}

	o.Printf("Tested %d files from %d attempts in %.3fs (parsing speed %.0f / s).\n",
		generated, iterations, time.Since(start).Seconds(), rate)

	return nil
}

func (a *app) dumpRoundTrip(o *IO, attempt int, cause error, r0, f0, r1, f1 []byte) error {
	for _, art := range []struct {
		name string
		data []byte
	}{{"r0", r0}, {"f0", f0}, {"r1", r1}, {"f1", f1}} {
		if art.data == nil {
			continue
		}

		if err := a.fs.WriteFileAtomic(a.path(art.name), art.data, filePerm); err != nil {
			return errors.Join(cause, err)
		}

		o.ErrPrintln("saved", art.name)
	}

	return fmt.Errorf("attempt %d: %w", attempt, cause)
}
