package mutate

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

const snapshotVersion = 1

// encMode uses Core Deterministic Encoding, so equal sessions produce equal
// snapshots.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("mutate: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("mutate: CBOR decoder initialization failed: " + err.Error())
	}
}

type snapshot struct {
	Version int          `cbor:"version"`
	Config  codec.Config `cbor:"config"`
	Files   []fileRecord `cbor:"files"`
	Table   chunk.Data   `cbor:"table"`
}

type fileRecord struct {
	Name      string  `cbor:"name"`
	Data      []byte  `cbor:"data"`
	Decisions []byte  `cbor:"decisions"`
	Validity  float64 `cbor:"validity"`
	Err       string  `cbor:"err,omitempty"`
}

// Save writes the files, decision streams and chunk table of s to w as a
// zstd-compressed CBOR snapshot.
func (s *Session) Save(w io.Writer) error {
	snap := snapshot{
		Version: snapshotVersion,
		Config:  s.cfg,
		Files:   make([]fileRecord, len(s.files)),
		Table:   s.table.Export(),
	}

	for i, f := range s.files {
		rec := fileRecord{Name: f.Name, Data: f.Data, Decisions: f.Decisions, Validity: f.Validity}
		if f.Err != nil {
			rec.Err = f.Err.Error()
		}

		snap.Files[i] = rec
	}

	data, err := encMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}

	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()

		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// Load reads a snapshot written by [Session.Save] and returns a Session
// for tmpl with the saved configuration.
func Load(r io.Reader, tmpl codec.Template, opts ...Option) (*Session, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	var snap snapshot
	if err := decMode.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorruptSnapshot, snap.Version, snapshotVersion)
	}

	if len(snap.Files) != len(snap.Table.Files) {
		return nil, fmt.Errorf("%w: %d files but %d chunk tables", ErrCorruptSnapshot, len(snap.Files), len(snap.Table.Files))
	}

	s, err := NewSession(tmpl, snap.Config, opts...)
	if err != nil {
		return nil, err
	}

	tb, err := chunk.Import(snap.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	s.table = tb

	for _, rec := range snap.Files {
		f := File{Name: rec.Name, Data: rec.Data, Decisions: rec.Decisions, Validity: rec.Validity}
		if rec.Err != "" {
			f.Err = errors.New(rec.Err)
		}

		s.files = append(s.files, f)
	}

	return s, nil
}
