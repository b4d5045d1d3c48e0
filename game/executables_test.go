package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExecutables_Windows(t *testing.T) {
	folder := t.TempDir()
	for _, name := range []string{
		"Game.exe",
		"unins000.exe",
		"bin/CrashHandler64.exe",
		"redist/VC_redist.x64.exe",
		"redist/DXSETUP.exe",
		"tools/editor.exe",
		"a/b/c/d/too-deep.exe",
		"readme.txt",
	} {
		writeTestFile(t, filepath.Join(folder, filepath.FromSlash(name)), "x")
	}

	got, err := FindExecutables(folder, Windows)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(folder, "Game.exe"),
		filepath.Join(folder, "tools", "editor.exe"),
	}, got)
}

func TestFindExecutables_Linux(t *testing.T) {
	folder := t.TempDir()
	writeTestFile(t, filepath.Join(folder, "Game.AppImage"), "x")
	writeTestFile(t, filepath.Join(folder, "run.sh"), "#!/bin/sh")
	writeTestFile(t, filepath.Join(folder, "data.pak"), "x")

	elf := filepath.Join(folder, "bin", "game")
	writeTestFile(t, elf, "\x7fELF....")
	require.NoError(t, os.Chmod(elf, 0o755))

	notElf := filepath.Join(folder, "bin", "script")
	writeTestFile(t, notElf, "echo hi")
	require.NoError(t, os.Chmod(notElf, 0o755))

	lib := filepath.Join(folder, "lib", "libgame.so.1")
	writeTestFile(t, lib, "\x7fELF....")
	require.NoError(t, os.Chmod(lib, 0o755))

	got, err := FindExecutables(folder, LinuxX64)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(folder, "Game.AppImage"),
		filepath.Join(folder, "bin", "game"),
		filepath.Join(folder, "run.sh"),
	}, got)
}

func TestFindExecutables_MacBundles(t *testing.T) {
	folder := t.TempDir()
	writeTestFile(t, filepath.Join(folder, "Game.app", "Contents", "MacOS", "Game"), "x")
	writeTestFile(t, filepath.Join(folder, "Game.app", "Contents", "Helpers", "Nested.app", "x"), "x")

	got, err := FindExecutables(folder, MacOS)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(folder, "Game.app")}, got)
}

func TestFindExecutables_UnknownPlatform(t *testing.T) {
	folder := t.TempDir()
	writeTestFile(t, filepath.Join(folder, "Game.exe"), "x")
	got, err := FindExecutables(folder, Unknown)
	require.NoError(t, err)
	assert.Empty(t, got)
}
