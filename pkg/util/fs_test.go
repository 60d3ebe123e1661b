package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")

	err := AtomicWrite(path, []byte("first"))
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(content))

	err = AtomicWrite(path, []byte("second"))
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(content))

	// no temporary leftovers
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func FuzzEscapePath(f *testing.F) {
	workDir := f.TempDir()
	f.Add("a")
	f.Add("a/b")
	f.Add("a\\b")
	f.Add("a:b")
	f.Add("a*b")
	f.Add("a?b")
	f.Add("a\"b")
	f.Add("a<b")
	f.Add("a>b")
	f.Add("a|b")

	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 20 {
			return
		}
		got := EscapePath(input)
		dir := filepath.Join(workDir, got)
		err := os.Mkdir(dir, 0776)
		require.NoError(t, err, "input: %s, got: %s", input, got)
		err = os.Remove(dir)
		require.NoError(t, err, "input: %s, got: %s", input, got)
	})
}
