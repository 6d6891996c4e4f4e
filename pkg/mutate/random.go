package mutate

import (
	"fmt"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
)

// Op names a mutation operation.
type Op uint8

const (
	OpReplace Op = iota
	OpDelete
	OpInsert
	OpAbstract
	OpSwap
)

func (op Op) String() string {
	switch op {
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	case OpAbstract:
		return "abstract"
	case OpSwap:
		return "swap"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// Mutation describes a mutation picked by [Session.RandomMutation].
type Mutation struct {
	Op     Op
	Target chunk.Handle
	Source chunk.Handle
	Point  chunk.InsertionPoint
}

// RandomMutation applies one random mutation to file target.
//
// It picks uniformly between replacing a non-optional chunk with a chunk of
// the same type, replacing an optional chunk with any optional chunk,
// inserting an optional chunk at an insertion point, and, when the file
// still has deletable chunks, deleting one. A deleted chunk is not picked
// for deletion again.
func (s *Session) RandomMutation(target int) (Mutation, Result, error) {
	if target < 0 || target >= len(s.files) {
		return Mutation{}, Result{}, fmt.Errorf("%w: no file %d", ErrInvalidEdit, target)
	}

	tb := s.table

	n := 3
	if len(tb.Deletable(target)) > 0 {
		n = 4
	}

	var m Mutation

	switch s.rng.IntN(n) {
	case 0:
		nonOpt := tb.NonOptional(target)
		if len(nonOpt) == 0 {
			return m, Result{}, fmt.Errorf("%w: no non-optional chunks in %s", ErrNoCandidates, s.files[target].Name)
		}

		m.Op = OpReplace
		m.Target = nonOpt[s.rng.IntN(len(nonOpt))]
		same := tb.ByType(tb.Get(m.Target).Type)
		m.Source = same[s.rng.IntN(len(same))]
	case 1:
		opt := tb.OptionalIn(target)
		if len(opt) == 0 {
			return m, Result{}, fmt.Errorf("%w: no optional chunks in %s", ErrNoCandidates, s.files[target].Name)
		}

		m.Op = OpReplace
		m.Target = opt[s.rng.IntN(len(opt))]
		m.Source = tb.Optional()[s.rng.IntN(len(tb.Optional()))]
	case 2:
		points := tb.InsertionPoints(target)
		if len(points) == 0 || len(tb.Optional()) == 0 {
			return m, Result{}, fmt.Errorf("%w: nothing to insert into %s", ErrNoCandidates, s.files[target].Name)
		}

		m.Op = OpInsert
		m.Point = points[s.rng.IntN(len(points))]
		m.Source = tb.Optional()[s.rng.IntN(len(tb.Optional()))]
	default:
		del := tb.Deletable(target)

		m.Op = OpDelete
		m.Target = del[s.rng.IntN(len(del))]
		tb.RemoveDeletable(m.Target)
	}

	res, err := s.Apply(m)

	return m, res, err
}

// Apply runs m.
func (s *Session) Apply(m Mutation) (Result, error) {
	switch m.Op {
	case OpReplace:
		return s.Replace(m.Target, m.Source)
	case OpDelete:
		return s.Delete(m.Target)
	case OpInsert:
		return s.Insert(m.Point, m.Source)
	case OpAbstract:
		return s.Abstract(m.Target)
	case OpSwap:
		return s.Swap(m.Target, m.Source)
	default:
		return Result{}, fmt.Errorf("%w: unknown operation %v", ErrInvalidEdit, m.Op)
	}
}

// Describe returns a one-line description of m.
func (s *Session) Describe(m Mutation) string {
	tb := s.table

	switch m.Op {
	case OpInsert:
		src := tb.Get(m.Source)

		return fmt.Sprintf("insert %s %s from %s [%d,%d] into %s at %d",
			src.Type, src.Name, s.files[src.File].Name, src.Start, src.End, s.files[m.Point.File].Name, m.Point.FilePos)
	case OpDelete, OpAbstract:
		t := tb.Get(m.Target)

		return fmt.Sprintf("%s %s %s from %s [%d,%d]", m.Op, t.Type, t.Name, s.files[t.File].Name, t.Start, t.End)
	default:
		t := tb.Get(m.Target)
		src := tb.Get(m.Source)

		return fmt.Sprintf("%s %s %s in %s [%d,%d] with %s [%d,%d]",
			m.Op, t.Type, t.Name, s.files[t.File].Name, t.Start, t.End, s.files[src.File].Name, src.Start, src.End)
	}
}
