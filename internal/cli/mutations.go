package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

var errResumeWithFiles = errors.New("--resume cannot be combined with input files")

// decisionsSuffix is appended to an input name to store its decision stream.
const decisionsSuffix = "-decisions"

// MutationsCmd returns the mutations command.
func MutationsCmd(a *app) *Command {
	fset := flag.NewFlagSet("mutations", flag.ContinueOnError)
	count := fset.IntP("count", "n", 1000, "Number of mutations to attempt")
	seed := fset.Uint64("seed", 0, "Seed for mutation choices and filler decisions (0: random)")
	workers := fset.IntP("workers", "j", 4, "Parallel parse workers")
	outDir := fset.StringP("out", "o", "", "Write every distinct output to `dir`")
	snapshot := fset.String("snapshot", "", "Save the parsed session to `file`")
	resume := fset.String("resume", "", "Load the session from a snapshot `file` instead of parsing inputs")
	noDecisions := fset.Bool("no-decisions", false, "Do not write <file>"+decisionsSuffix+" for parsed inputs")

	return &Command{
		Flags: fset,
		Usage: "mutations [flags] <file>...",
		Short: "Run random structural mutations over a batch of files",
		Long: `Parse every <file>, store its decision stream in <file>` + decisionsSuffix + `, and run
random replace, insert and delete mutations, cycling through the parsed files
as targets. Identical outputs are reported once.`,
		FailCode: exitHardFail,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			opts := mutationsOptions{
				count:       *count,
				seed:        *seed,
				workers:     *workers,
				outDir:      *outDir,
				snapshot:    *snapshot,
				resume:      *resume,
				noDecisions: *noDecisions,
			}

			return execMutations(ctx, a, o, opts, args)
		},
	}
}

type mutationsOptions struct {
	count       int
	seed        uint64
	workers     int
	outDir      string
	snapshot    string
	resume      string
	noDecisions bool
}

func execMutations(ctx context.Context, a *app, o *IO, opts mutationsOptions, files []string) error {
	sessOpts := []mutate.Option{mutate.WithLogger(a.log), mutate.WithWorkers(opts.workers)}
	if opts.seed != 0 {
		sessOpts = append(sessOpts, mutate.WithSeed(opts.seed))
	}

	var (
		s   *mutate.Session
		err error
	)

	switch {
	case opts.resume != "":
		if len(files) > 0 {
			return errResumeWithFiles
		}

		s, err = a.resume(opts.resume, sessOpts)
	case len(files) == 0:
		return errMissingInput
	default:
		s, err = a.parseBatch(ctx, o, files, sessOpts, !opts.noDecisions)
	}

	if err != nil {
		return err
	}

	if opts.snapshot != "" {
		var buf bytes.Buffer
		if err := s.Save(&buf); err != nil {
			return err
		}

		if err := a.fs.WriteFileAtomic(a.path(opts.snapshot), buf.Bytes(), filePerm); err != nil {
			return err
		}
	}

	if opts.outDir != "" {
		if err := a.fs.MkdirAll(a.path(opts.outDir), dirPerm); err != nil {
			return err
		}
	}

	emitted := 0

	st, err := s.Mutations(ctx, opts.count, func(m mutate.Mutation, res mutate.Result) error {
		emitted++

		name := fmt.Sprintf("mutation-%06d", emitted)
		o.Printf("%s: %s drift=%d\n", name, s.Describe(m), int(res.Drift))

		if opts.outDir == "" {
			return nil
		}

		return a.fs.WriteFileAtomic(filepath.Join(a.path(opts.outDir), name), res.File, filePerm)
	})
	if err != nil {
		return err
	}

	o.Printf("attempted=%d generated=%d duplicates=%d failed=%d drifted=%d\n",
		st.Attempted, st.Generated, st.Duplicates, st.Failed, st.Drifted)

	return nil
}

// parseBatch parses files into a new session and writes their decision
// streams.
func (a *app) parseBatch(ctx context.Context, o *IO, files []string, opts []mutate.Option, decisions bool) (*mutate.Session, error) {
	s, err := a.session(opts...)
	if err != nil {
		return nil, err
	}

	inputs := make([]mutate.Input, 0, len(files))

	for _, name := range files {
		data, err := a.read(name)
		if err != nil {
			return nil, err
		}

		inputs = append(inputs, mutate.Input{Name: name, Data: data})
	}

	if err := s.ParseAll(ctx, inputs); err != nil {
		return nil, err
	}

	for i := range s.Files() {
		f := s.File(i)
		if !f.Parsed() {
			o.Skip(f.Name, f.Err)

			continue
		}

		if decisions && f.Name != stdio {
			if err := a.fs.WriteFileAtomic(a.path(f.Name+decisionsSuffix), f.Decisions, filePerm); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (a *app) resume(path string, opts []mutate.Option) (*mutate.Session, error) {
	data, err := a.fs.ReadFile(a.path(path))
	if err != nil {
		return nil, err
	}

	return mutate.Load(bytes.NewReader(data), a.format.Template, opts...)
}
