// Package config loads the ffz configuration: the default format and the
// codec tuning parameters.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

// Errors returned by [Load].
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrFormatEmpty        = errors.New("format cannot be empty")
)

// FileName is the project config file name.
const FileName = ".ffz.json"

// DefaultFormat is used when no config names a format.
const DefaultFormat = "tlv"

// Config holds all configuration options.
//
// The codec parameters are embedded so that their keys sit at the top level
// of the config file.
type Config struct {
	Format string `json:"format"`

	codec.Config

	// Absolute working directory (from -C flag or os.Getwd)
	EffectiveCwd string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Format: DefaultFormat,
		Config: codec.DefaultConfig(),
	}
}

// Codec returns the codec parameters of cfg.
func (cfg Config) Codec() codec.Config {
	return cfg.Config
}

// Validate reports whether cfg is usable.
func (cfg Config) Validate() error {
	if cfg.Format == "" {
		return ErrFormatEmpty
	}

	return cfg.Config.Validate()
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/ffz/config.json if set, otherwise ~/.config/ffz/config.json.
// Returns empty string if home directory cannot be determined.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "ffz", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "ffz", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	FormatOverride  string            // -f/--format flag value; empty means no override
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/ffz/config.json or $XDG_CONFIG_HOME/ffz/config.json)
// 3. Project config file at default location (.ffz.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
//
// Unset and zero numeric keys keep the lower layer's value. The tiers and
// strings objects replace the lower layer as a whole.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	globalCfg, gpath, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = gpath
	cfg = merge(cfg, globalCfg)

	projectCfg, ppath, err := loadProject(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = ppath
	cfg = merge(cfg, projectCfg)

	if input.FormatOverride != "" {
		cfg.Format = input.FormatOverride
	}

	err = cfg.Validate()
	if err != nil {
		source := cfg.Sources.Project
		if source == "" {
			source = cfg.Sources.Global
		}

		if source == "" {
			return Config{}, err
		}

		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, source, err)
	}

	cfg.EffectiveCwd = workDir

	return cfg, nil
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadProject loads the project config file (.ffz.json) or an explicit config file.
func loadProject(workDir, configPath string) (Config, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false

	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		_, statErr := os.Stat(path)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile loads a config file. If mustExist is false, missing files return zero config.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// "format": "" is an error rather than "unset".
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if val, ok := raw["format"]; ok {
		if s, isString := val.(string); isString && s == "" {
			return Config{}, ErrFormatEmpty
		}
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Format != "" {
		base.Format = overlay.Format
	}

	if overlay.DecisionCapacity != 0 {
		base.DecisionCapacity = overlay.DecisionCapacity
	}

	if overlay.FileCapacity != 0 {
		base.FileCapacity = overlay.FileCapacity
	}

	if overlay.EvilRange != 0 {
		base.EvilRange = overlay.EvilRange
	}

	if overlay.EOFRange != 0 {
		base.EOFRange = overlay.EOFRange
	}

	if overlay.MaxStringLength != 0 {
		base.MaxStringLength = overlay.MaxStringLength
	}

	if overlay.Tiers != (codec.Tiers{}) {
		base.Tiers = overlay.Tiers
	}

	if overlay.Strings != (codec.StringWeights{}) {
		base.Strings = overlay.Strings
	}

	return base
}
