package operations_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recompkit/rkl/pkg/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestFindFiles_DepthAndExclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "game.exe"), 1)
	writeFile(t, filepath.Join(root, "bin", "tool.exe"), 1)
	writeFile(t, filepath.Join(root, "a", "b", "c", "deep.exe"), 1)
	writeFile(t, filepath.Join(root, "__MACOSX", "junk.exe"), 1)
	writeFile(t, filepath.Join(root, "readme.txt"), 1)

	isExe := func(path string, d fs.DirEntry) bool {
		return !d.IsDir() && strings.HasSuffix(d.Name(), ".exe")
	}

	matches, err := operations.FindFiles(root, 1, operations.DefaultScanExclusions, isExe)
	require.NoError(t, err)

	var names []string
	for _, m := range matches {
		rel, _ := filepath.Rel(root, m.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"bin/tool.exe", "game.exe"}, names)

	matches, err = operations.FindFiles(root, 3, operations.DefaultScanExclusions, isExe)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestFindFiles_MatchedDirectoryIsNotDescended(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Game.app", "Contents", "MacOS", "Game"), 1)

	isApp := func(path string, d fs.DirEntry) bool {
		return d.IsDir() && strings.HasSuffix(d.Name(), ".app")
	}
	matches, err := operations.FindFiles(root, 3, nil, isApp)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Dir)
	assert.Equal(t, filepath.Join(root, "Game.app"), matches[0].Path)
}

func TestFindFiles_MissingRoot(t *testing.T) {
	_, err := operations.FindFiles(filepath.Join(t.TempDir(), "missing"), 1, nil,
		func(string, fs.DirEntry) bool { return true })
	assert.Error(t, err)
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), 100)
	writeFile(t, filepath.Join(root, "sub", "b.bin"), 23)

	size, err := operations.DirSize(root)
	require.NoError(t, err)
	assert.Equal(t, int64(123), size)
}
