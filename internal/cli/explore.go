package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

var (
	errBadArgs   = errors.New("bad arguments")
	errNoResult  = errors.New("no mutation result yet")
	explorerCmds = []string{
		"files", "chunks", "points", "replace", "delete", "insert",
		"abstract", "swap", "random", "save", "adopt", "help", "quit",
	}
)

// ExploreCmd returns the explore command.
func ExploreCmd(a *app) *Command {
	fset := flag.NewFlagSet("explore", flag.ContinueOnError)
	seed := fset.Uint64("seed", 0, "Seed for mutation choices and filler decisions (0: random)")

	return &Command{
		Flags: fset,
		Usage: "explore [flags] <file>...",
		Short: "Interactive mutation shell",
		Long: `Parse every <file> and start a shell for inspecting chunks and applying
mutations by chunk handle. Type 'help' in the shell for its commands.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMissingInput
			}

			var opts []mutate.Option
			if *seed != 0 {
				opts = append(opts, mutate.WithSeed(*seed))
			}

			s, err := a.parseBatch(ctx, o, args, opts, false)
			if err != nil {
				return err
			}

			e := &explorer{app: a, o: o, s: s}

			return e.run(ctx, a.prompter())
		},
	}
}

// prompter reads shell lines.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// prompter returns a line editor on an interactive terminal and a plain
// line reader otherwise.
func (a *app) prompter() prompter {
	if f, ok := a.stdin.(*os.File); ok && isTerminal(f) {
		st := liner.NewLiner()
		st.SetCtrlCAborts(true)
		st.SetCompleter(complete)

		h := &linerPrompter{State: st, history: historyFile()}
		h.load()

		return h
	}

	in := a.stdin
	if in == nil {
		in = strings.NewReader("")
	}

	return &scanPrompter{sc: bufio.NewScanner(in)}
}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)

	return err == nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".ffz_history")
}

type linerPrompter struct {
	*liner.State
	history string
}

func (p *linerPrompter) load() {
	if p.history == "" {
		return
	}

	if f, err := os.Open(p.history); err == nil {
		_, _ = p.ReadHistory(f)
		_ = f.Close()
	}
}

func (p *linerPrompter) Close() error {
	if p.history != "" {
		if f, err := os.Create(p.history); err == nil {
			_, _ = p.WriteHistory(f)
			_ = f.Close()
		}
	}

	return p.State.Close()
}

type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.sc.Text(), nil
}

func (p *scanPrompter) AppendHistory(string) {}
func (p *scanPrompter) Close() error         { return nil }

// complete provides tab completion for shell commands.
func complete(line string) []string {
	var out []string

	for _, c := range explorerCmds {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

// explorer is the state of one explore shell.
type explorer struct {
	app  *app
	o    *IO
	s    *mutate.Session
	last *mutate.Result
}

func (e *explorer) run(ctx context.Context, p prompter) error {
	defer func() { _ = p.Close() }()

	e.o.Printf("ffz explore - %s, %d files, %d chunks\n", e.app.format.Name, e.s.Files(), e.s.Table().Len())
	e.o.Println("Type 'help' for available commands.")

	for ctx.Err() == nil {
		line, err := p.Prompt("ffz> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		quit, err := e.exec(line)
		if err != nil {
			e.o.Println("error:", err)
		}

		if quit {
			return nil
		}
	}

	return ctx.Err()
}

// exec runs one shell line and reports whether the shell should exit.
func (e *explorer) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	nums, err := atois(args)

	switch cmd {
	case "exit", "quit", "q":
		return true, nil
	case "help", "?":
		e.printHelp()
	case "files":
		for i := range e.s.Files() {
			f := e.s.File(i)
			e.o.Printf("%d %s %d bytes validity=%.3f parsed=%v\n", i, f.Name, len(f.Data), f.Validity, f.Parsed())
		}
	case "chunks":
		return false, e.chunks(nums, err)
	case "points":
		return false, e.points(nums, err)
	case "save":
		return false, e.save(args)
	case "adopt":
		if e.last == nil {
			return false, errNoResult
		}

		idx := e.s.Adopt(fmt.Sprintf("result-%d", e.s.Files()), *e.last)
		e.o.Printf("adopted as file %d\n", idx)
	default:
		return false, e.mutate(cmd, nums, err)
	}

	return false, nil
}

func (e *explorer) chunks(nums []int, err error) error {
	if err != nil || len(nums) != 1 {
		return fmt.Errorf("%w: chunks <file>", errBadArgs)
	}

	tb := e.s.Table()
	for _, h := range tb.Chunks(nums[0]) {
		e.o.Printf("#%-5d %s\n", h, strings.TrimSpace(formatChunk(tb.Get(h))))
	}

	return nil
}

func (e *explorer) points(nums []int, err error) error {
	if err != nil || len(nums) != 1 {
		return fmt.Errorf("%w: points <file>", errBadArgs)
	}

	for _, p := range e.s.Table().InsertionPoints(nums[0]) {
		e.o.Printf("@%d decision %d %s (%s %s)\n", p.FilePos, p.DecisionPos, p.Kind, p.Type, p.Name)
	}

	return nil
}

func (e *explorer) save(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: save <path>", errBadArgs)
	}

	if e.last == nil {
		return errNoResult
	}

	if err := e.app.fs.WriteFileAtomic(e.app.path(args[0]), e.last.File, filePerm); err != nil {
		return err
	}

	e.o.Println("saved", args[0])

	return nil
}

func (e *explorer) mutate(cmd string, nums []int, err error) error {
	var (
		res   mutate.Result
		m     mutate.Mutation
		opErr error
	)

	arity := map[string]int{"replace": 2, "delete": 1, "insert": 3, "abstract": 1, "swap": 2, "random": 1}

	n, ok := arity[cmd]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}

	if err != nil || len(nums) != n {
		return fmt.Errorf("%w: %s takes %d numbers", errBadArgs, cmd, n)
	}

	h := func(i int) chunk.Handle { return chunk.Handle(nums[i]) }

	switch cmd {
	case "replace":
		res, opErr = e.s.Replace(h(0), h(1))
	case "delete":
		res, opErr = e.s.Delete(h(0))
	case "insert":
		var p chunk.InsertionPoint

		p, opErr = e.s.InsertionPoint(nums[0], nums[1])
		if opErr == nil {
			res, opErr = e.s.Insert(p, h(2))
		}
	case "abstract":
		res, opErr = e.s.Abstract(h(0))
	case "swap":
		res, opErr = e.s.Swap(h(0), h(1))
	case "random":
		if nums[0] < 0 || nums[0] >= e.s.Files() {
			return fmt.Errorf("%w: no file %d", errBadArgs, nums[0])
		}

		m, res, opErr = e.s.RandomMutation(nums[0])
		if opErr == nil {
			e.o.Println(e.s.Describe(m))
		}
	}

	if opErr != nil {
		return opErr
	}

	e.last = &res
	e.o.Printf("generated %d bytes, %d decisions, drift=%d\n", len(res.File), len(res.Decisions), int(res.Drift))

	return nil
}

func (e *explorer) printHelp() {
	e.o.Println("Commands:")
	e.o.Println("  files                         List files")
	e.o.Println("  chunks <file>                 List chunks with their handles")
	e.o.Println("  points <file>                 List insertion points")
	e.o.Println("  replace <target> <source>     Replace chunk target with chunk source")
	e.o.Println("  delete <target>               Delete an optional chunk")
	e.o.Println("  insert <file> <pos> <source>  Insert chunk source at byte pos of file")
	e.o.Println("  abstract <target>             Regenerate a chunk from random decisions")
	e.o.Println("  swap <a> <b>                  Swap two chunks of one file")
	e.o.Println("  random <file>                 Apply a random mutation to file")
	e.o.Println("  save <path>                   Write the last result to path")
	e.o.Println("  adopt                         Add the last result as a new file")
	e.o.Println("  help                          Show this help")
	e.o.Println("  exit / quit / q               Exit")
}

func atois(args []string) ([]int, error) {
	out := make([]int, 0, len(args))

	for _, a := range args {
		n, err := strconv.Atoi(strings.TrimPrefix(a, "#"))
		if err != nil {
			return nil, err
		}

		out = append(out, n)
	}

	return out, nil
}
