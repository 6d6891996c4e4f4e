package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/internal/config"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func load(t *testing.T, dir string, in config.LoadInput) (config.Config, error) {
	t.Helper()

	in.WorkDirOverride = dir
	if in.Env == nil {
		in.Env = map[string]string{}
	}

	return config.Load(in)
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := load(t, dir, config.LoadInput{})
	require.NoError(t, err)

	require.Equal(t, config.DefaultFormat, cfg.Format)
	require.Equal(t, dir, cfg.EffectiveCwd)
	require.Equal(t, config.Sources{}, cfg.Sources)

	if diff := cmp.Diff(codec.DefaultConfig(), cfg.Codec()); diff != "" {
		t.Fatalf("codec config (-want +got):\n%s", diff)
	}
}

func Test_Load_Reads_Project_File_With_Comments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{
		// smaller files
		"format": "bmpish",
		"file_capacity": 512,
		"tiers": {"small": 200, "byte": 40, "word": 10, "full": 6,},
	}`)

	cfg, err := load(t, dir, config.LoadInput{})
	require.NoError(t, err)

	require.Equal(t, "bmpish", cfg.Format)
	require.Equal(t, 512, cfg.FileCapacity)
	require.Equal(t, codec.Tiers{Small: 200, Byte: 40, Word: 10, Full: 6}, cfg.Tiers)
	require.Equal(t, codec.DefaultDecisionCapacity, cfg.DecisionCapacity)
	require.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)
}

func Test_Load_Applies_Precedence_When_All_Layers_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeFile(t, filepath.Join(xdg, "ffz", "config.json"), `{"format": "bmpish", "evil_range": 64, "eof_range": 4}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"evil_range": 32}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"evil_range": 16}`)

	env := map[string]string{"XDG_CONFIG_HOME": xdg}

	cfg, err := load(t, dir, config.LoadInput{Env: env})
	require.NoError(t, err)
	require.Equal(t, "bmpish", cfg.Format)
	require.Equal(t, uint64(32), cfg.EvilRange)
	require.Equal(t, uint64(4), cfg.EOFRange)
	require.Equal(t, filepath.Join(xdg, "ffz", "config.json"), cfg.Sources.Global)

	cfg, err = load(t, dir, config.LoadInput{Env: env, ConfigPath: "custom.json", FormatOverride: "tlv"})
	require.NoError(t, err)
	require.Equal(t, "tlv", cfg.Format)
	require.Equal(t, uint64(16), cfg.EvilRange)
	require.Equal(t, filepath.Join(dir, "custom.json"), cfg.Sources.Project)
}

func Test_Load_Uses_Home_When_XDG_Unset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	writeFile(t, filepath.Join(home, ".config", "ffz", "config.json"), `{"max_string_length": 20}`)

	cfg, err := load(t, dir, config.LoadInput{Env: map[string]string{"HOME": home}})
	require.NoError(t, err)
	require.Equal(t, uint64(20), cfg.MaxStringLength)
}

func Test_Load_Returns_Error_When_Explicit_File_Missing(t *testing.T) {
	t.Parallel()

	_, err := load(t, t.TempDir(), config.LoadInput{ConfigPath: "nope.json"})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func Test_Load_Returns_Error_When_File_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "syntax", content: `{"format": `, want: config.ErrConfigInvalid},
		{name: "wrong type", content: `{"file_capacity": "big"}`, want: config.ErrConfigInvalid},
		{name: "empty format", content: `{"format": ""}`, want: config.ErrFormatEmpty},
		{name: "tiers sum", content: `{"tiers": {"small": 1, "byte": 1, "word": 1, "full": 1}}`, want: codec.ErrInvalidConfig},
		{name: "partial tiers", content: `{"tiers": {"small": 256}}`, want: codec.ErrInvalidConfig},
		{name: "evil range", content: `{"evil_range": 1}`, want: codec.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := load(t, dir, config.LoadInput{})
			require.ErrorIs(t, err, tt.want)
			require.ErrorContains(t, err, config.FileName)
		})
	}
}
