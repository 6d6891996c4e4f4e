package fs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/internal/fs"
)

func Test_Real_Exists_Reports_Missing_And_Present_Files(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	exists, err := fsys.Exists(path)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, os.WriteFile(path, []byte{1}, 0o600))

	exists, err = fsys.Exists(path)
	require.NoError(t, err)
	require.True(t, exists)
}

func Test_Real_WriteFileAtomic_Replaces_Content_And_Sets_Perm(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "out.bin")

	require.NoError(t, fsys.WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, fsys.WriteFileAtomic(path, []byte("second"), 0o640))

	got, err := fsys.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func Test_ReadDecisions_Truncates_File_To_Capacity(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "d")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0o600))

	got, err := fs.ReadDecisions(fsys, path, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)

	got, err = fs.ReadDecisions(fsys, path, 10)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func Test_ReadDecisions_Returns_Error_When_File_Empty_Or_Missing(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	_, err := fs.ReadDecisions(fsys, empty, 10)
	require.ErrorIs(t, err, fs.ErrEmptyDecisions)

	_, err = fs.ReadDecisions(fsys, filepath.Join(dir, "missing"), 10)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_ReadDecisions_Uses_Kernel_Random_When_Path_Empty(t *testing.T) {
	t.Parallel()

	a, err := fs.ReadDecisions(fs.NewReal(), "", 4096)
	require.NoError(t, err)
	require.Len(t, a, 4096)

	b, err := fs.RandomDecisions(4096)
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b))
}
