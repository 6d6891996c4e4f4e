package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/calvinalkan/formatfuzz/internal/config"
	"github.com/calvinalkan/formatfuzz/internal/fs"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
	"github.com/calvinalkan/formatfuzz/pkg/formats"
	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755

	// stdio stands for stdin or stdout in file arguments.
	stdio = "-"
)

var (
	errMissingOutput = errors.New("missing output file (use '-' for stdout)")
	errMissingInput  = errors.New("missing input files (use '-' for stdin)")
	errParseFailed   = errors.New("parse failed")
)

// app holds what commands share after global flags and config are resolved.
type app struct {
	cfg    config.Config
	format formats.Format
	fs     fs.FS
	log    *slog.Logger
	stdin  io.Reader
}

// path resolves p against the effective working directory.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(a.cfg.EffectiveCwd, p)
}

func (a *app) read(p string) ([]byte, error) {
	if p == stdio {
		if a.stdin == nil {
			return nil, nil
		}

		return io.ReadAll(a.stdin)
	}

	return a.fs.ReadFile(a.path(p))
}

// write stores data at p, or writes it to stdout when p is "-".
func (a *app) write(o *IO, p string, data []byte) error {
	if p == stdio {
		_, err := o.Write(data)
		return err
	}

	return a.fs.WriteFileAtomic(a.path(p), data, filePerm)
}

func (a *app) codec() (*codec.Codec, error) {
	return codec.New(a.cfg.Codec())
}

func (a *app) session(opts ...mutate.Option) (*mutate.Session, error) {
	return mutate.NewSession(a.format.Template, a.cfg.Codec(), append([]mutate.Option{mutate.WithLogger(a.log)}, opts...)...)
}

// track reads name and adds it to s. Parse failures are errors here.
func (a *app) track(s *mutate.Session, name string) (int, error) {
	data, err := a.read(name)
	if err != nil {
		return 0, err
	}

	idx, _, err := s.BeginTrackedPass(name, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errParseFailed, name, err)
	}

	return idx, nil
}
