package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

var errMissingFlag = errors.New("missing required flag")

// chunkFlags name a chunk by file and inclusive byte range.
type chunkFlags struct {
	role  string
	file  *string
	start *int
	end   *int
}

func addChunkFlags(fset *flag.FlagSet, role string, withEnd bool) chunkFlags {
	cf := chunkFlags{
		role:  role,
		file:  fset.String(role+"-file", "", "File holding the "+role+" chunk"),
		start: fset.Int(role+"-start", -1, "First byte of the "+role+" chunk"),
	}

	if withEnd {
		cf.end = fset.Int(role+"-end", -1, "Last byte of the "+role+" chunk")
	}

	return cf
}

func (cf chunkFlags) check() error {
	if *cf.file == "" {
		return fmt.Errorf("%w: --%s-file", errMissingFlag, cf.role)
	}

	if *cf.start < 0 {
		return fmt.Errorf("%w: --%s-start", errMissingFlag, cf.role)
	}

	if cf.end != nil && *cf.end < 0 {
		return fmt.Errorf("%w: --%s-end", errMissingFlag, cf.role)
	}

	return nil
}

// editCommand builds a mutation command. run parses the files named by
// its flags into s and applies the mutation.
func editCommand(a *app, name, usage, short, long string, setup func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error)) *Command {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	seed := fset.Uint64("seed", 0, "Seed for filler decisions (0: random)")
	run := setup(fset)

	return &Command{
		Flags:    fset,
		Usage:    usage,
		Short:    short,
		Long:     long,
		FailCode: exitHardFail,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMissingOutput
			}

			var opts []mutate.Option
			if *seed != 0 {
				opts = append(opts, mutate.WithSeed(*seed))
			}

			s, err := a.session(opts...)
			if err != nil {
				return err
			}

			res, err := run(s)
			if err != nil {
				return err
			}

			return a.finishEdit(o, name, args[0], res)
		},
	}
}

func (a *app) finishEdit(o *IO, op, out string, res mutate.Result) error {
	if err := a.write(o, out, res.File); err != nil {
		return err
	}

	switch {
	case res.Drift > 0:
		o.ErrPrintf("warning: %s consumed %d more decision bytes than expected while generating chunk\n", op, int(res.Drift))
	case res.Drift < 0:
		o.ErrPrintf("warning: %s consumed %d fewer decision bytes than expected while generating chunk\n", op, -int(res.Drift))
	}

	if out != stdio {
		o.ErrPrintf("%s created (%d bytes)\n", out, len(res.File))
	}

	if op == "swap" {
		o.ErrPrintf("swapped chunks now at %s and %s\n", swappedRange(res.Swapped[0]), swappedRange(res.Swapped[1]))
	}

	if sign := res.Drift.Sign(); sign != 0 {
		return exitStatus(sign)
	}

	return nil
}

// swappedRange formats a chunk found after a swap for the next --first or
// --second flags.
func swappedRange(ch chunk.Chunk) string {
	if ch.Name == "" {
		return "(not regenerated)"
	}

	return fmt.Sprintf("[%d,%d]", ch.Start, ch.End)
}

// locate checks cf and parses its file into s, returning the file index.
func (a *app) locate(s *mutate.Session, cf chunkFlags) (int, error) {
	if err := cf.check(); err != nil {
		return 0, err
	}

	return a.track(s, *cf.file)
}

const driftHelp = `
Exits 0 when the spliced field regenerated from exactly the decisions it was
copied with, 1 when it consumed more and -1 when it consumed fewer. Invalid
edits and failed generations exit -2.`

// ReplaceCmd returns the replace command.
func ReplaceCmd(a *app) *Command {
	return editCommand(a, "replace", "replace [flags] <out>", "Replace a chunk with a chunk of another file",
		`Replace the target chunk (byte range [target-start, target-end] of
target-file) with the source chunk, and write the regenerated file to <out>.
Both chunks must be optional, or non-optional with the same type. Dependent
fields such as lengths and checksums are recomputed by the template.`+driftHelp,
		func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error) {
			target := addChunkFlags(fset, "target", true)
			source := addChunkFlags(fset, "source", true)

			return func(s *mutate.Session) (mutate.Result, error) {
				sf, err := a.locate(s, source)
				if err != nil {
					return mutate.Result{}, err
				}

				tf, err := a.locate(s, target)
				if err != nil {
					return mutate.Result{}, err
				}

				src, err := s.Find(sf, *source.start, *source.end)
				if err != nil {
					return mutate.Result{}, err
				}

				t, err := s.Find(tf, *target.start, *target.end)
				if err != nil {
					return mutate.Result{}, err
				}

				return s.Replace(t, src)
			}
		})
}

// DeleteCmd returns the delete command.
func DeleteCmd(a *app) *Command {
	return editCommand(a, "delete", "delete [flags] <out>", "Delete an optional chunk",
		`Delete the target chunk and write the regenerated file to <out>. The chunk
must be optional and followed by an end-of-file or lookahead check, so the
template can do without it.`+driftHelp,
		func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error) {
			target := addChunkFlags(fset, "target", true)

			return func(s *mutate.Session) (mutate.Result, error) {
				tf, err := a.locate(s, target)
				if err != nil {
					return mutate.Result{}, err
				}

				t, err := s.Find(tf, *target.start, *target.end)
				if err != nil {
					return mutate.Result{}, err
				}

				return s.Delete(t)
			}
		})
}

// InsertCmd returns the insert command.
func InsertCmd(a *app) *Command {
	return editCommand(a, "insert", "insert [flags] <out>", "Insert an optional chunk of another file",
		`Insert the source chunk into target-file with its first byte at
target-start, and write the regenerated file to <out>. target-start must be
the start of an optional chunk or the end of an appendable one, and the
source chunk must be optional. Run 'ffz chunks' to list insertion points.`+driftHelp,
		func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error) {
			target := addChunkFlags(fset, "target", false)
			source := addChunkFlags(fset, "source", true)

			return func(s *mutate.Session) (mutate.Result, error) {
				sf, err := a.locate(s, source)
				if err != nil {
					return mutate.Result{}, err
				}

				tf, err := a.locate(s, target)
				if err != nil {
					return mutate.Result{}, err
				}

				src, err := s.Find(sf, *source.start, *source.end)
				if err != nil {
					return mutate.Result{}, err
				}

				p, err := s.InsertionPoint(tf, *target.start)
				if err != nil {
					return mutate.Result{}, err
				}

				return s.Insert(p, src)
			}
		})
}

// AbstractCmd returns the abstract command.
func AbstractCmd(a *app) *Command {
	return editCommand(a, "abstract", "abstract [flags] <out>", "Regenerate a chunk from random decisions",
		`Regenerate the target chunk from fresh random decisions, keep everything
after it, and write the file to <out>. Fails with exit code -2 when the
regenerated file never reaches the field again.`,
		func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error) {
			target := addChunkFlags(fset, "target", true)

			return func(s *mutate.Session) (mutate.Result, error) {
				tf, err := a.locate(s, target)
				if err != nil {
					return mutate.Result{}, err
				}

				t, err := s.Find(tf, *target.start, *target.end)
				if err != nil {
					return mutate.Result{}, err
				}

				return s.Abstract(t)
			}
		})
}

// SwapCmd returns the swap command.
func SwapCmd(a *app) *Command {
	return editCommand(a, "swap", "swap [flags] <out>", "Swap two chunks of one file",
		`Exchange the first and second chunk of target-file and write the
regenerated file to <out>. The chunks must not overlap and must be both
optional, or non-optional with the same type.`+driftHelp,
		func(fset *flag.FlagSet) func(s *mutate.Session) (mutate.Result, error) {
			file := fset.String("target-file", "", "File holding both chunks")
			first := chunkFlags{role: "first", file: file,
				start: fset.Int("first-start", -1, "First byte of the first chunk"),
				end:   fset.Int("first-end", -1, "Last byte of the first chunk")}
			second := chunkFlags{role: "second", file: file,
				start: fset.Int("second-start", -1, "First byte of the second chunk"),
				end:   fset.Int("second-end", -1, "Last byte of the second chunk")}

			return func(s *mutate.Session) (mutate.Result, error) {
				if *file == "" {
					return mutate.Result{}, fmt.Errorf("%w: --target-file", errMissingFlag)
				}

				if err := second.check(); err != nil {
					return mutate.Result{}, err
				}

				tf, err := a.locate(s, first)
				if err != nil {
					return mutate.Result{}, err
				}

				x, err := s.Find(tf, *first.start, *first.end)
				if err != nil {
					return mutate.Result{}, err
				}

				y, err := s.Find(tf, *second.start, *second.end)
				if err != nil {
					return mutate.Result{}, err
				}

				return s.Swap(x, y)
			}
		})
}
