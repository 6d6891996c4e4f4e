// Package mutate applies structure-aware mutations to files described by a
// [codec.Template].
//
// A [Session] owns a batch of files. Each file is parsed once in a tracked
// pass that records its decision stream and its chunks. Mutations splice
// decision ranges between those streams and replay the result through the
// template, so dependent fields such as lengths and checksums are
// recomputed rather than copied.
//
// # Basic Usage
//
//	s, err := mutate.NewSession(tmpl, codec.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	a, _, _ := s.BeginTrackedPass("a.bin", dataA)
//	b, _, _ := s.BeginTrackedPass("b.bin", dataB)
//
//	res, err := s.Replace(s.Table().NonOptional(a)[0], s.Table().NonOptional(b)[0])
//	if errors.Is(err, mutate.ErrInvalidEdit) {
//	    // chunks are not interchangeable
//	}
//
// # Drift
//
// Every operation reports [Drift]: how many more (or fewer) decision bytes
// the spliced field consumed on regeneration than it did in its source.
// Nonzero drift is not an error. It means the field regenerated with a
// different structure than the one it was copied from.
//
// # Concurrency
//
// A Session is not safe for concurrent use. [Session.ParseAll] parses in
// parallel with one codec per worker and merges the results in input order.
package mutate

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

// File is one file of a [Session].
type File struct {
	Name string
	Data []byte
	// Decisions is the stream reconstructed by the tracked pass. It is nil
	// when the pass failed.
	Decisions []byte
	// Validity is the fraction of fields parsed without evil decisions.
	Validity float64
	// Err is the reason the tracked pass failed, or nil.
	Err error
}

// Parsed reports whether the tracked pass of f succeeded.
func (f File) Parsed() bool {
	return f.Err == nil
}

// Session holds the files, decision streams and chunk table of one batch.
type Session struct {
	tmpl    codec.Template
	cfg     codec.Config
	codec   *codec.Codec
	tracker *chunk.Tracker

	files []File
	table *chunk.Table

	rng     *rand.Rand
	log     *slog.Logger
	workers int
}

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the logger for diagnostic output. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSeed makes the filler bytes and random choices of the session
// deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithWorkers bounds the number of parallel parse workers of
// [Session.ParseAll]. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSession returns an empty Session for tmpl.
func NewSession(tmpl codec.Template, cfg codec.Config, opts ...Option) (*Session, error) {
	c, err := codec.New(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		tmpl:    tmpl,
		cfg:     cfg,
		codec:   c,
		tracker: chunk.NewTracker(),
		table:   chunk.NewTable(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: 4,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.codec.SetObserver(s.tracker)

	return s, nil
}

// Config returns the codec configuration of s.
func (s *Session) Config() codec.Config {
	return s.cfg
}

// Template returns the template of s.
func (s *Session) Template() codec.Template {
	return s.tmpl
}

// Table returns the chunk table. File indices of the table match
// [Session.File].
func (s *Session) Table() *chunk.Table {
	return s.table
}

// Files returns the number of files.
func (s *Session) Files() int {
	return len(s.files)
}

// File returns file i.
func (s *Session) File(i int) File {
	return s.files[i]
}

// BeginTrackedPass parses data, records its chunks and returns its file
// index and validity.
//
// A file that fails to parse is still added, without chunks, so it keeps
// its validity and error for reporting. The returned error is the parse
// error.
func (s *Session) BeginTrackedPass(name string, data []byte) (int, float64, error) {
	s.tracker.Reset()

	res, err := s.codec.Parse(s.tmpl, data)

	f := File{
		Name:     name,
		Data:     append([]byte(nil), data...),
		Validity: s.tracker.Validity(),
	}

	if err != nil {
		f.Err = err
		s.files = append(s.files, f)
		idx := s.table.Add(nil, nil)

		s.log.Debug("parse failed", "file", name, "validity", f.Validity, "err", err)

		return idx, f.Validity, err
	}

	f.Decisions = res.Decisions
	s.files = append(s.files, f)
	idx := s.tracker.Commit(s.table)

	s.log.Debug("parsed", "file", name, "bytes", len(data), "decisions", len(res.Decisions), "validity", f.Validity)

	return idx, f.Validity, nil
}

// Adopt adds the output of a mutation as a new file and returns its index,
// so it can serve as target or source of further mutations.
func (s *Session) Adopt(name string, res Result) int {
	s.files = append(s.files, File{
		Name:      name,
		Data:      append([]byte(nil), res.File...),
		Decisions: append([]byte(nil), res.Decisions...),
		Validity:  1,
	})

	if res.Chunks == nil || res.Chunks.Files() != 1 {
		return s.table.Add(nil, nil)
	}

	s.table.Merge(res.Chunks)

	return s.table.Files() - 1
}

// Find returns the outermost chunk of file covering the file bytes
// [start, end].
func (s *Session) Find(file, start, end int) (chunk.Handle, error) {
	if file < 0 || file >= len(s.files) {
		return 0, fmt.Errorf("%w: no file %d", ErrInvalidEdit, file)
	}

	h, ok := s.table.Find(file, start, end)
	if !ok {
		return 0, fmt.Errorf("%w: no chunk [%d,%d] in %s", ErrInvalidEdit, start, end, s.files[file].Name)
	}

	return h, nil
}

// InsertionPoint returns the insertion point of file at filePos.
func (s *Session) InsertionPoint(file, filePos int) (chunk.InsertionPoint, error) {
	if file < 0 || file >= len(s.files) {
		return chunk.InsertionPoint{}, fmt.Errorf("%w: no file %d", ErrInvalidEdit, file)
	}

	p, ok := s.table.InsertionPointAt(file, filePos)
	if !ok {
		return chunk.InsertionPoint{}, fmt.Errorf("%w: no insertion point at %d in %s", ErrInvalidEdit, filePos, s.files[file].Name)
	}

	return p, nil
}
