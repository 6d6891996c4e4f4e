package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/internal/config"
	"github.com/calvinalkan/formatfuzz/internal/fs"
	"github.com/calvinalkan/formatfuzz/pkg/formats"
)

// Exit codes of the mutation commands. A drifted mutation exits with the
// sign of its drift (1 or -1).
const (
	exitOK       = 0
	exitHardFail = -2
)

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal on it cancels the running command.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("ffz", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{}) // discard pflag output

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	format := globals.StringP("format", "f", "", "Template `name` ("+strings.Join(formats.Names(), ", ")+")")
	verbose := globals.BoolP("verbose", "v", false, "Log debug output to stderr")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) < 2 {
		printUsage(out, globals, allCommands(&app{}))
		return 0
	}

	err := globals.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		FormatOverride:  *format,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	f, err := formats.Lookup(cfg.Format)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}

	a := &app{
		cfg:    cfg,
		format: f,
		fs:     fs.NewReal(),
		log:    slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		stdin:  in,
	}

	commands := allCommands(a)

	rest := globals.Args()
	if *help || len(rest) == 0 {
		printUsage(out, globals, commands)
		return 0
	}

	name := rest[0]
	if name == "help" {
		printUsage(out, globals, commands)
		return 0
	}

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, globals, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(out, errOut)

	code := cmd.Run(ctx, o, rest[1:])
	if code != exitOK {
		if errors.Is(ctx.Err(), context.Canceled) {
			a.log.Debug("interrupted", "command", name)
		}

		return code
	}

	return o.Finish()
}

func allCommands(a *app) []*Command {
	return []*Command{
		FuzzCmd(a),
		ParseCmd(a),
		ReplaceCmd(a),
		DeleteCmd(a),
		InsertCmd(a),
		AbstractCmd(a),
		SwapCmd(a),
		MutationsCmd(a),
		ChunksCmd(a),
		ExploreCmd(a),
		TestCmd(a),
		PrintConfigCmd(a),
		VersionCmd(),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, `ffz - format-aware fuzzing with decision streams

Usage: ffz [global flags] <command> [args]

Global flags:`)
	fprintln(w, strings.TrimRight(globals.FlagUsages(), "\n"))

	if len(commands) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'ffz <command> --help' for more information on a command.")
}
