package mutate_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

// records is a fixed header followed by length-prefixed records until the
// end of the file.
func records(header int) codec.Template {
	return func(c *codec.Codec) {
		c.Field("header", "magic", func() {
			c.Blob(header)
		})

		for !c.EOF() {
			c.Field("rec", "record", func() {
				n := c.Integer(1, 0, codec.Uniform)
				c.Blob(int(n))
			})
		}
	}
}

// counted is a count followed by that many items.
func counted(c *codec.Codec) {
	var n uint64

	c.Field("count", "count", func() { n = c.Integer(1, 0, codec.Uniform) })
	c.Field("items", "items", func() {
		for range n {
			c.Integer(1, 0, codec.Uniform)
		}
	})
}

func newSession(t *testing.T, tmpl codec.Template, opts ...mutate.Option) *mutate.Session {
	t.Helper()

	s, err := mutate.NewSession(tmpl, codec.DefaultConfig(), append([]mutate.Option{mutate.WithSeed(1)}, opts...)...)
	require.NoError(t, err)

	return s
}

func mustParse(t *testing.T, s *mutate.Session, name string, data []byte) int {
	t.Helper()

	idx, validity, err := s.BeginTrackedPass(name, data)
	require.NoError(t, err)
	require.InDelta(t, 1.0, validity, 1e-9)

	return idx
}

func mustFind(t *testing.T, s *mutate.Session, file, start, end int) chunk.Handle {
	t.Helper()

	h, err := s.Find(file, start, end)
	require.NoError(t, err)

	return h
}

func Test_BeginTrackedPass_Keeps_Failed_File_Without_Chunks(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))

	idx, validity, err := s.BeginTrackedPass("bad", []byte{'M', 'Z', 9, 'a'})
	require.ErrorIs(t, err, codec.ErrContentMismatch)
	require.Equal(t, 0, idx)
	require.InDelta(t, 0.5, validity, 1e-9)

	f := s.File(0)
	require.False(t, f.Parsed())
	require.Nil(t, f.Decisions)
	require.Empty(t, s.Table().Chunks(0))

	idx = mustParse(t, s, "good", []byte{'M', 'Z'})
	require.Equal(t, 1, idx)
	require.Equal(t, 2, s.Table().Files())
}

func Test_Delete_Removes_Chunk_And_Shifts_Following_Bytes(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(10))

	orig := []byte("0123456789")
	orig = append(orig, 4, 'a', 'b', 'c', 'd')
	orig = append(orig, 5, 'v', 'w', 'x', 'y', 'z')
	require.Len(t, orig, 21)

	f := mustParse(t, s, "in", orig)

	h := mustFind(t, s, f, 10, 14)
	require.True(t, s.Table().Get(h).Deletable())
	require.True(t, s.Table().Get(mustFind(t, s, f, 15, 20)).Optional)

	res, err := s.Delete(h)
	require.NoError(t, err)
	require.Equal(t, mutate.Drift(0), res.Drift)

	require.Len(t, res.File, len(orig)-5)
	require.Equal(t, orig[:10], res.File[:10])
	require.Equal(t, orig[15:21], res.File[10:16])
}

func Test_Delete_Rejects_Chunk_When_Not_Optional(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	f := mustParse(t, s, "in", []byte{'M', 'Z', 1, 'a'})

	_, err := s.Delete(mustFind(t, s, f, 0, 1))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
}

func Test_Replace_Rejects_Different_Types_Without_Changing_Target(t *testing.T) {
	t.Parallel()

	tmpl := func(c *codec.Codec) {
		c.Field("size", "uint32", func() { c.Integer(4, 0, codec.Uniform) })
		c.Field("name", "string", func() { c.String(4) })
	}

	s := newSession(t, tmpl)
	orig := []byte{1, 0, 0, 0, 'a', 'b', 'c', 'd'}
	f := mustParse(t, s, "in", orig)
	before := append([]byte(nil), s.File(f).Decisions...)

	_, err := s.Replace(mustFind(t, s, f, 0, 3), mustFind(t, s, f, 4, 7))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	require.Equal(t, orig, s.File(f).Data)
	require.Equal(t, before, s.File(f).Decisions)
}

func Test_Replace_Rejects_Mixed_Optionality(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	f := mustParse(t, s, "in", []byte{'M', 'Z', 1, 'a'})

	_, err := s.Replace(mustFind(t, s, f, 2, 3), mustFind(t, s, f, 0, 1))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
}

func Test_Replace_Copies_Optional_Chunk_Between_Files(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a', 1, 'b'})
	b := mustParse(t, s, "b", []byte{'P', 'K', 3, 'x', 'y', 'z'})

	res, err := s.Replace(mustFind(t, s, a, 2, 3), mustFind(t, s, b, 2, 5))
	require.NoError(t, err)
	require.Equal(t, mutate.Drift(0), res.Drift)
	require.Equal(t, []byte{'M', 'Z', 3, 'x', 'y', 'z', 1, 'b'}, res.File)
}

func Test_Replace_Reports_Drift_When_Field_Consumes_Fewer_Decisions(t *testing.T) {
	t.Parallel()

	s := newSession(t, counted)
	a := mustParse(t, s, "a", []byte{2, 10, 11})
	b := mustParse(t, s, "b", []byte{3, 20, 21, 22})

	res, err := s.Replace(mustFind(t, s, a, 1, 2), mustFind(t, s, b, 1, 3))
	require.NoError(t, err)

	require.Equal(t, mutate.Drift(-1), res.Drift)
	require.Equal(t, -1, res.Drift.Sign())
	require.Equal(t, []byte{2, 20, 21}, res.File)
}

func Test_Replace_Returns_ErrGenerationFailed_When_Replay_Aborts(t *testing.T) {
	t.Parallel()

	tmpl := func(c *codec.Codec) {
		var a, b uint64

		c.Field("a", "u8", func() { a = c.Integer(1, 0, codec.Uniform) })
		c.Field("b", "u8", func() { b = c.Integer(1, 0, codec.Uniform) })

		if a > 100 && b == 1 {
			c.Bytes(0, 10)
		}
	}

	s := newSession(t, tmpl)
	a := mustParse(t, s, "a", []byte{1, 1})
	b := mustParse(t, s, "b", []byte{200, 5})

	_, err := s.Replace(mustFind(t, s, a, 0, 0), mustFind(t, s, b, 0, 0))
	require.ErrorIs(t, err, mutate.ErrGenerationFailed)
	require.ErrorIs(t, err, codec.ErrInternal)
}

func Test_Insert_Splices_Optional_Chunk_After_Appendable_Chunk(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a'})
	b := mustParse(t, s, "b", []byte{'P', 'K', 2, 'b', 'c'})

	p, err := s.InsertionPoint(a, 4)
	require.NoError(t, err)
	require.Equal(t, chunk.AfterAppendable, p.Kind)

	res, err := s.Insert(p, mustFind(t, s, b, 2, 4))
	require.NoError(t, err)
	require.Equal(t, mutate.Drift(0), res.Drift)
	require.Equal(t, []byte{'M', 'Z', 1, 'a', 2, 'b', 'c'}, res.File)
}

func Test_Insert_Rejects_Unrecorded_Point_And_Non_Optional_Source(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a'})

	p, err := s.InsertionPoint(a, 4)
	require.NoError(t, err)

	_, err = s.Insert(p, mustFind(t, s, a, 0, 1))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	bogus := p
	bogus.DecisionPos = 3

	_, err = s.Insert(bogus, mustFind(t, s, a, 2, 3))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	_, err = s.InsertionPoint(a, 3)
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
}

func Test_Insert_Rejects_Splice_Over_Decision_Capacity(t *testing.T) {
	t.Parallel()

	cfg := codec.DefaultConfig()
	cfg.DecisionCapacity = 12

	s, err := mutate.NewSession(records(2), cfg, mutate.WithSeed(1))
	require.NoError(t, err)

	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a'})
	b := mustParse(t, s, "b", []byte{'P', 'K', 5, 'a', 'b', 'c', 'd', 'e'})
	require.Len(t, s.File(b).Decisions, 10)

	p, err := s.InsertionPoint(a, 4)
	require.NoError(t, err)

	_, err = s.Insert(p, mustFind(t, s, b, 2, 7))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
	require.ErrorIs(t, err, codec.ErrCapacityExceeded)
}

func Test_Abstract_Keeps_Decisions_After_Target(t *testing.T) {
	t.Parallel()

	tmpl := func(c *codec.Codec) {
		c.Field("a", "u8", func() { c.Integer(1, 0, codec.Uniform) })
		c.Field("b", "u8", func() { c.Integer(1, 0, codec.Uniform) })
	}

	s := newSession(t, tmpl)
	f := mustParse(t, s, "in", []byte{1, 2})

	res, err := s.Abstract(mustFind(t, s, f, 0, 0))
	require.NoError(t, err)
	require.Len(t, res.File, 2)
	require.Equal(t, byte(2), res.File[1])
}

func Test_Abstract_Fails_When_Kept_Decisions_No_Longer_Fit(t *testing.T) {
	t.Parallel()

	tmpl := func(c *codec.Codec) {
		c.Field("a", "u16", func() { c.U16() })
		c.Field("b", "blob", func() { c.Blob(4) })
	}

	// The word tier almost always wins, so the re-decided field grows from
	// two decision bytes to three and pushes the blob past the capacity.
	cfg := codec.DefaultConfig()
	cfg.DecisionCapacity = 6
	cfg.Tiers = codec.Tiers{Small: 1, Byte: 1, Word: 253, Full: 1}

	var failed, kept int

	for seed := range uint64(16) {
		s, err := mutate.NewSession(tmpl, cfg, mutate.WithSeed(seed))
		require.NoError(t, err)

		f := mustParse(t, s, "in", []byte{5, 0, 'w', 'x', 'y', 'z'})
		require.Len(t, s.File(f).Decisions, 6)

		res, err := s.Abstract(mustFind(t, s, f, 0, 1))

		switch {
		case err == nil:
			kept++

			require.Equal(t, []byte("wxyz"), res.File[2:])
		default:
			require.ErrorIs(t, err, mutate.ErrGenerationFailed)
			require.NotErrorIs(t, err, mutate.ErrAbstractMissed)

			failed++
		}
	}

	require.Positive(t, failed)
	require.Equal(t, 16, failed+kept)
}

func Test_Abstract_Returns_ErrAbstractMissed_When_Field_Is_Not_Revisited(t *testing.T) {
	t.Parallel()

	var missed, kept int

	for seed := range uint64(64) {
		s := newSession(t, records(2), mutate.WithSeed(seed))
		f := mustParse(t, s, "in", []byte{'M', 'Z', 1, 'a', 1, 'b'})

		res, err := s.Abstract(mustFind(t, s, f, 2, 3))

		switch {
		case errors.Is(err, mutate.ErrAbstractMissed):
			missed++
		case err == nil:
			kept++

			require.Equal(t, []byte{1, 'b'}, res.File[len(res.File)-2:])
		default:
			require.ErrorIs(t, err, mutate.ErrGenerationFailed)
		}
	}

	require.Positive(t, missed)
	require.Positive(t, kept)
}

func Test_Swap_Twice_Restores_Original_File(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	orig := []byte{'M', 'Z', 2, 'a', 'b', 2, 'c', 'd', 1, 'e'}
	f := mustParse(t, s, "in", orig)

	res, err := s.Swap(mustFind(t, s, f, 2, 4), mustFind(t, s, f, 5, 7))
	require.NoError(t, err)
	require.Equal(t, mutate.Drift(0), res.Drift)
	require.Equal(t, []byte{'M', 'Z', 2, 'c', 'd', 2, 'a', 'b', 1, 'e'}, res.File)

	first, second := res.Swapped[0], res.Swapped[1]
	require.Equal(t, 2, first.Start)
	require.Equal(t, 5, second.Start)

	g := s.Adopt("swapped", res)

	back, err := s.Swap(mustFind(t, s, g, second.Start, second.End), mustFind(t, s, g, first.Start, first.End))
	require.NoError(t, err)
	require.Equal(t, mutate.Drift(0), back.Drift)
	require.Equal(t, orig, back.File)
}

func Test_Swap_Rejects_Chunks_Of_Different_Files_Or_Types(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a'})
	b := mustParse(t, s, "b", []byte{'P', 'K', 1, 'b'})

	_, err := s.Swap(mustFind(t, s, a, 2, 3), mustFind(t, s, b, 2, 3))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	_, err = s.Swap(mustFind(t, s, a, 0, 1), mustFind(t, s, a, 2, 3))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	_, err = s.Swap(mustFind(t, s, a, 2, 3), mustFind(t, s, a, 2, 3))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
}

func Test_Operations_Reject_Unknown_Handles(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	mustParse(t, s, "a", []byte{'M', 'Z'})

	_, err := s.Delete(chunk.Handle(99))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	_, err = s.Abstract(chunk.Handle(-1))
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)

	_, err = s.Find(5, 0, 1)
	require.ErrorIs(t, err, mutate.ErrInvalidEdit)
}

func Test_Result_Chunks_Describe_Regenerated_File(t *testing.T) {
	t.Parallel()

	s := newSession(t, records(2))
	a := mustParse(t, s, "a", []byte{'M', 'Z', 1, 'a', 1, 'b'})

	res, err := s.Delete(mustFind(t, s, a, 2, 3))
	require.NoError(t, err)
	require.Equal(t, []byte{'M', 'Z', 1, 'b'}, res.File)

	var got []string
	for _, h := range res.Chunks.Chunks(0) {
		got = append(got, res.Chunks.Get(h).String())
	}

	want := []string{
		"0 [0,1] magic header decisions [0,2)",
		"0 [2,3] record rec decisions [2,5) optional",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}

	g := s.Adopt("deleted", res)
	require.Equal(t, res.File, s.File(g).Data)
	require.Len(t, s.Table().Chunks(g), 2)
}
