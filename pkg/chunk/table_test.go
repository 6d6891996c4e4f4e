package chunk_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
)

func sampleTable(t *testing.T) *chunk.Table {
	t.Helper()

	tb := chunk.NewTable()

	tr, _ := track(t, recordsTemplate(2), []byte{'M', 'Z', 1, 'a', 2, 'b', 'c'})
	require.Equal(t, 0, tr.Commit(tb))

	tr, _ = track(t, recordsTemplate(2), []byte{'P', 'K', 0})
	require.Equal(t, 1, tr.Commit(tb))

	return tb
}

func Test_Table_Indexes_Chunks_By_Optionality_And_Type(t *testing.T) {
	t.Parallel()

	tb := sampleTable(t)

	require.Equal(t, 2, tb.Files())
	require.Equal(t, 5, tb.Len())
	require.Equal(t, []string{"magic"}, tb.Types())
	require.Len(t, tb.ByType("magic"), 2)
	require.Len(t, tb.Optional(), 3)
	require.Len(t, tb.OptionalIn(0), 2)
	require.Len(t, tb.OptionalIn(1), 1)
	require.Len(t, tb.NonOptional(1), 1)

	for _, h := range tb.OptionalIn(1) {
		require.Equal(t, 1, tb.Get(h).File)
	}
}

func Test_Table_Lists_Only_Optional_Chunks_Followed_By_Check_As_Deletable(t *testing.T) {
	t.Parallel()

	tb := sampleTable(t)

	del := tb.Deletable(0)
	require.Len(t, del, 2)

	for _, h := range del {
		c := tb.Get(h)
		require.True(t, c.Optional)
		require.True(t, c.FollowingOptional)
	}

	require.True(t, tb.RemoveDeletable(del[0]))
	require.Len(t, tb.Deletable(0), 1)
	require.False(t, tb.RemoveDeletable(del[0]))
}

func Test_Table_Find_Returns_Chunk_By_File_Range(t *testing.T) {
	t.Parallel()

	tb := sampleTable(t)

	h, ok := tb.Find(0, 4, 6)
	require.True(t, ok)
	require.Equal(t, "rec", tb.Get(h).Name)
	require.Equal(t, 5, tb.Get(h).DecisionStart)

	_, ok = tb.Find(0, 4, 5)
	require.False(t, ok)

	_, ok = tb.Find(7, 0, 1)
	require.False(t, ok)
}

func Test_Table_InsertionPointAt_Finds_Recorded_Points(t *testing.T) {
	t.Parallel()

	tb := sampleTable(t)

	p, ok := tb.InsertionPointAt(1, 2)
	require.True(t, ok)
	require.Equal(t, 1, p.File)
	require.Equal(t, 2, p.DecisionPos)
	require.True(t, tb.HasInsertionPoint(p))

	_, ok = tb.InsertionPointAt(1, 1)
	require.False(t, ok)

	p.DecisionPos++
	require.False(t, tb.HasInsertionPoint(p))
}

func Test_Table_Merge_Rebases_Files_And_Handles(t *testing.T) {
	t.Parallel()

	a := sampleTable(t)
	b := sampleTable(t)
	b.RemoveDeletable(b.Deletable(0)[0])

	a.Merge(b)

	require.Equal(t, 4, a.Files())
	require.Equal(t, 10, a.Len())
	require.Len(t, a.ByType("magic"), 4)
	require.Len(t, a.Deletable(2), 1)
	require.Len(t, a.Deletable(0), 2)

	for _, h := range a.Chunks(3) {
		require.Equal(t, 3, a.Get(h).File)
	}

	for _, p := range a.InsertionPoints(2) {
		require.Equal(t, 2, p.File)
	}
}

func Test_Table_Keeps_Indices_Aligned_When_File_Has_No_Chunks(t *testing.T) {
	t.Parallel()

	tb := chunk.NewTable()
	require.Equal(t, 0, tb.Add(nil, nil))

	tr, _ := track(t, recordsTemplate(0), []byte{1, 'a'})
	require.Equal(t, 1, tr.Commit(tb))

	require.Empty(t, tb.Chunks(0))
	require.Len(t, tb.Chunks(1), 1)
}

func Test_Table_Import_Restores_Exported_Table(t *testing.T) {
	t.Parallel()

	tb := sampleTable(t)
	tb.RemoveDeletable(tb.Deletable(0)[1])

	got, err := chunk.Import(tb.Export())
	require.NoError(t, err)

	if diff := cmp.Diff(tb.Export(), got.Export()); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, tb.Types(), got.Types())
	require.Len(t, got.Deletable(0), 1)
}

func Test_Table_Import_Rejects_Bad_Deletable_Index(t *testing.T) {
	t.Parallel()

	_, err := chunk.Import(chunk.Data{Files: []chunk.FileData{{Deletable: []int{3}}}})
	require.Error(t, err)
}
