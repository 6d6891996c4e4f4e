package mutate

import (
	"fmt"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

// Drift is the number of decision bytes a spliced field consumed on
// regeneration beyond what it consumed in its source. Negative values mean
// fewer.
type Drift int

// Sign returns 1, -1 or 0.
func (d Drift) Sign() int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// Result is the output of a mutation.
type Result struct {
	// File is the regenerated file.
	File []byte
	// Decisions is the stream that generates File.
	Decisions []byte
	// Drift of the spliced field. For [Session.Swap] it is the drift of the
	// first region, or of the second if the first has none.
	Drift Drift
	// Chunks holds the chunks of File as a single-file table.
	Chunks *chunk.Table
	// Swapped holds the chunks found at the two swapped regions after a
	// [Session.Swap], in decision order.
	Swapped [2]chunk.Chunk
}

// watch follows one field through a replay.
type watch struct {
	start int
	name  string
	depth int
	end   int // expected end

	found bool
	got   chunk.Chunk
}

func (w *watch) observe(ch chunk.Chunk) {
	if w.found || ch.DecisionStart != w.start || ch.Name != w.name || ch.Depth != w.depth {
		return
	}

	w.found = true
	w.got = ch
}

func (w *watch) drift() Drift {
	if !w.found {
		return 0
	}

	return Drift(w.got.DecisionEnd - w.end)
}

// source returns the chunk h and the stream of its file.
func (s *Session) source(h chunk.Handle) (chunk.Chunk, []byte, error) {
	if !s.table.Valid(h) {
		return chunk.Chunk{}, nil, fmt.Errorf("%w: unknown chunk %d", ErrInvalidEdit, h)
	}

	c := s.table.Get(h)
	f := s.files[c.File]

	if !f.Parsed() || c.DecisionEnd > len(f.Decisions) {
		return chunk.Chunk{}, nil, fmt.Errorf("%w: %s has no decisions", ErrInvalidEdit, f.Name)
	}

	return c, f.Decisions, nil
}

// Replace splices the decisions of src over those of t.
//
// Both chunks must be optional, or both non-optional with the same type.
func (s *Session) Replace(t, src chunk.Handle) (Result, error) {
	tc, dt, err := s.source(t)
	if err != nil {
		return Result{}, err
	}

	sc, ds, err := s.source(src)
	if err != nil {
		return Result{}, err
	}

	if tc.Optional != sc.Optional {
		return Result{}, fmt.Errorf("%w: cannot replace %s chunk with %s chunk", ErrInvalidEdit, optionality(tc), optionality(sc))
	}

	if !tc.Optional && tc.Type != sc.Type {
		return Result{}, fmt.Errorf("%w: cannot replace %s with %s", ErrInvalidEdit, tc.Type, sc.Type)
	}

	buf := splice(dt, tc.DecisionStart, tc.Len(), ds[sc.DecisionStart:sc.DecisionEnd])

	w := &watch{start: tc.DecisionStart, name: tc.Name, depth: tc.Depth, end: tc.DecisionStart + sc.Len()}

	res, err := s.replay(buf, w.observe)
	if err != nil {
		return Result{}, err
	}

	res.Drift = w.drift()
	s.logDrift("replace", res.Drift)

	return res, nil
}

// Delete removes the decisions of t.
//
// t must be optional and followed by a check, so the template can skip it.
func (s *Session) Delete(t chunk.Handle) (Result, error) {
	tc, dt, err := s.source(t)
	if err != nil {
		return Result{}, err
	}

	if !tc.Deletable() {
		return Result{}, fmt.Errorf("%w: chunk %s [%d,%d] is not deletable", ErrInvalidEdit, tc.Name, tc.Start, tc.End)
	}

	return s.replay(splice(dt, tc.DecisionStart, tc.Len(), nil), nil)
}

// Insert splices the decisions of the optional chunk src in at p.
//
// p must be an insertion point recorded for its file.
func (s *Session) Insert(p chunk.InsertionPoint, src chunk.Handle) (Result, error) {
	if !s.table.HasInsertionPoint(p) {
		return Result{}, fmt.Errorf("%w: no insertion point at %d", ErrInvalidEdit, p.FilePos)
	}

	f := s.files[p.File]
	if !f.Parsed() || p.DecisionPos > len(f.Decisions) {
		return Result{}, fmt.Errorf("%w: %s has no decisions", ErrInvalidEdit, f.Name)
	}

	sc, ds, err := s.source(src)
	if err != nil {
		return Result{}, err
	}

	if !sc.Optional {
		return Result{}, fmt.Errorf("%w: cannot insert non-optional chunk %s", ErrInvalidEdit, sc.Name)
	}

	buf := splice(f.Decisions, p.DecisionPos, 0, ds[sc.DecisionStart:sc.DecisionEnd])

	w := &watch{start: p.DecisionPos, name: sc.Name, depth: p.Depth, end: p.DecisionPos + sc.Len()}

	res, err := s.replay(buf, w.observe)
	if err != nil {
		return Result{}, err
	}

	res.Drift = w.drift()
	s.logDrift("insert", res.Drift)

	return res, nil
}

// Abstract re-decides the subtree of t with fresh random decisions and
// keeps everything after it.
//
// The decisions following t are restored once regeneration leaves the
// field again, at whatever position that happens. When they no longer fit
// the decision capacity the abstraction fails with [ErrGenerationFailed].
// Abstract reports no drift.
func (s *Session) Abstract(t chunk.Handle) (Result, error) {
	tc, dt, err := s.source(t)
	if err != nil {
		return Result{}, err
	}

	stream := s.stream(dt[:tc.DecisionStart])
	saved := dt[tc.DecisionEnd:]
	restored, overflow := false, 0

	hook := func(ch chunk.Chunk) {
		if restored || overflow > 0 || ch.DecisionStart != tc.DecisionStart || ch.Name != tc.Name || ch.Depth != tc.Depth {
			return
		}

		if end := ch.DecisionEnd + len(saved); end > len(stream) {
			overflow = end

			return
		}

		restored = true

		copy(stream[ch.DecisionEnd:], saved)
	}

	res, err := s.generate(stream, hook)
	if overflow > 0 {
		return Result{}, fmt.Errorf("%w: decisions after %s need %d bytes, capacity %d", ErrGenerationFailed, tc.Name, overflow, len(stream))
	}

	if err != nil {
		return Result{}, err
	}

	if !restored {
		return Result{}, fmt.Errorf("%w: %s [%d,%d]", ErrAbstractMissed, tc.Name, tc.Start, tc.End)
	}

	return res, nil
}

// Swap exchanges the decisions of a and b.
//
// The chunks must belong to the same file, must not overlap, and must be
// both optional or both non-optional with the same type. The chunks found
// at the two regions after regeneration are reported in
// [Result.Swapped].
func (s *Session) Swap(a, b chunk.Handle) (Result, error) {
	ac, d, err := s.source(a)
	if err != nil {
		return Result{}, err
	}

	bc, _, err := s.source(b)
	if err != nil {
		return Result{}, err
	}

	if ac.File != bc.File {
		return Result{}, fmt.Errorf("%w: cannot swap chunks of different files", ErrInvalidEdit)
	}

	if ac.Optional != bc.Optional {
		return Result{}, fmt.Errorf("%w: cannot swap %s chunk with %s chunk", ErrInvalidEdit, optionality(ac), optionality(bc))
	}

	if !ac.Optional && ac.Type != bc.Type {
		return Result{}, fmt.Errorf("%w: cannot swap %s with %s", ErrInvalidEdit, ac.Type, bc.Type)
	}

	if bc.DecisionStart < ac.DecisionStart {
		ac, bc = bc, ac
	}

	if ac.DecisionEnd > bc.DecisionStart {
		return Result{}, fmt.Errorf("%w: chunks %s and %s overlap", ErrInvalidEdit, ac.Name, bc.Name)
	}

	buf := make([]byte, 0, len(d))
	buf = append(buf, d[:ac.DecisionStart]...)
	buf = append(buf, d[bc.DecisionStart:bc.DecisionEnd]...)
	buf = append(buf, d[ac.DecisionEnd:bc.DecisionStart]...)
	buf = append(buf, d[ac.DecisionStart:ac.DecisionEnd]...)
	buf = append(buf, d[bc.DecisionEnd:]...)

	second := ac.DecisionStart + bc.Len() + (bc.DecisionStart - ac.DecisionEnd)

	first := &watch{start: ac.DecisionStart, name: ac.Name, depth: ac.Depth, end: ac.DecisionStart + bc.Len()}
	last := &watch{start: second, name: bc.Name, depth: bc.Depth, end: second + ac.Len()}

	res, err := s.replay(buf, func(ch chunk.Chunk) {
		first.observe(ch)
		last.observe(ch)
	})
	if err != nil {
		return Result{}, err
	}

	res.Swapped = [2]chunk.Chunk{first.got, last.got}

	res.Drift = first.drift()
	if res.Drift == 0 {
		res.Drift = last.drift()
	}

	s.logDrift("swap", res.Drift)

	return res, nil
}

// replay regenerates a file from the spliced stream buf.
func (s *Session) replay(buf []byte, onExit func(chunk.Chunk)) (Result, error) {
	if len(buf) > s.cfg.DecisionCapacity {
		return Result{}, fmt.Errorf("%w: spliced stream of %d bytes exceeds capacity %d: %w", ErrInvalidEdit, len(buf), s.cfg.DecisionCapacity, codec.ErrCapacityExceeded)
	}

	return s.generate(s.stream(buf), onExit)
}

// stream returns buf followed by random filler up to the decision capacity.
func (s *Session) stream(buf []byte) []byte {
	out := make([]byte, max(s.cfg.DecisionCapacity, len(buf)))
	n := copy(out, buf)

	for i := n; i < len(out); i++ {
		out[i] = byte(s.rng.Uint32())
	}

	return out
}

func (s *Session) generate(stream []byte, onExit func(chunk.Chunk)) (Result, error) {
	tr := chunk.NewTracker()
	tr.OnExit(onExit)

	s.codec.SetObserver(tr)
	defer s.codec.SetObserver(s.tracker)

	out, err := s.codec.Generate(s.tmpl, stream)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	if len(out.File) == 0 {
		return Result{}, fmt.Errorf("%w: empty output", ErrGenerationFailed)
	}

	tb := chunk.NewTable()
	tr.Commit(tb)

	return Result{
		File:      out.File,
		Decisions: out.Decisions,
		Chunks:    tb,
	}, nil
}

func (s *Session) logDrift(op string, d Drift) {
	if d != 0 {
		s.log.Debug("drift", "op", op, "bytes", int(d))
	}
}

// splice returns dst with n bytes at off replaced by src.
func splice(dst []byte, off, n int, src []byte) []byte {
	out := make([]byte, 0, len(dst)-n+len(src))
	out = append(out, dst[:off]...)
	out = append(out, src...)

	return append(out, dst[off+n:]...)
}

func optionality(c chunk.Chunk) string {
	if c.Optional {
		return "optional"
	}

	return "non-optional"
}
