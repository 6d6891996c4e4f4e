package cli

import (
	"context"
	"runtime/debug"

	flag "github.com/spf13/pflag"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = ""

// VersionCmd returns the version command.
func VersionCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("version", flag.ContinueOnError),
		Usage: "version",
		Short: "Show version",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			io.Println("ffz", version())
			return nil
		},
	}
}

func version() string {
	if Version != "" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "(devel)"
}
