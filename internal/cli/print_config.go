package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, a)
		},
	}
}

func execPrintConfig(io *IO, a *app) error {
	cfg := a.cfg

	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("format=" + cfg.Format)
	io.Printf("decision_capacity=%d\n", cfg.DecisionCapacity)
	io.Printf("file_capacity=%d\n", cfg.FileCapacity)
	io.Printf("evil_range=%d\n", cfg.EvilRange)
	io.Printf("eof_range=%d\n", cfg.EOFRange)
	io.Printf("max_string_length=%d\n", cfg.MaxStringLength)
	io.Printf("tiers=small:%d byte:%d word:%d full:%d\n", cfg.Tiers.Small, cfg.Tiers.Byte, cfg.Tiers.Word, cfg.Tiers.Full)
	io.Printf("strings=ascii:%d latin1:%d raw:%d\n", cfg.Strings.ASCII, cfg.Strings.Latin1, cfg.Strings.Raw)

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
