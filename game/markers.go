package game

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Marker files kept inside each game's install folder.
const (
	VersionMarker            = "version.txt"
	LastPlayedMarker         = "LastPlayed.txt"
	SelectedExecutableMarker = "SelectedExecutable.txt"

	// LastPlayedLayout is the timestamp format of LastPlayedMarker.
	LastPlayedLayout = "2006-01-02 15:04:05"
)

// writeMarker replaces path with content in one rename.
func writeMarker(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// readMarker returns the trimmed marker content, or "" when the marker is absent.
func readMarker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// IsInstalled reports whether folder exists and holds anything.
func IsInstalled(folder string) bool {
	entries, err := os.ReadDir(folder)
	return err == nil && len(entries) > 0
}

func ReadVersion(folder string) (string, error) {
	return readMarker(filepath.Join(folder, VersionMarker))
}

func WriteVersion(folder, version string) error {
	return writeMarker(filepath.Join(folder, VersionMarker), version)
}

// ReadLastPlayed returns the last launch time, or false when the game was never played
// or the marker cannot be parsed.
func ReadLastPlayed(folder string) (time.Time, bool) {
	s, err := readMarker(filepath.Join(folder, LastPlayedMarker))
	if err != nil || s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(LastPlayedLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func WriteLastPlayed(folder string, t time.Time) error {
	return writeMarker(filepath.Join(folder, LastPlayedMarker), t.In(time.Local).Format(LastPlayedLayout))
}

// ReadSelectedExecutable returns the absolute path stored in the selection marker.
// The marker holds a path relative to folder so it survives moving the games folder.
func ReadSelectedExecutable(folder string) (string, error) {
	rel, err := readMarker(filepath.Join(folder, SelectedExecutableMarker))
	if err != nil || rel == "" {
		return "", err
	}
	abs, err := insideFolder(folder, rel)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func WriteSelectedExecutable(folder, path string) error {
	abs, err := insideFolder(folder, path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(folder, abs)
	if err != nil {
		return err
	}
	return writeMarker(filepath.Join(folder, SelectedExecutableMarker), filepath.ToSlash(rel))
}

func RemoveSelectedExecutable(folder string) error {
	err := os.Remove(filepath.Join(folder, SelectedExecutableMarker))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// insideFolder resolves path (absolute or relative to folder) and rejects anything
// outside folder.
func insideFolder(folder, path string) (string, error) {
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(folder, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(filepath.Clean(folder), p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s is not inside %s", path, folder)
	}
	return p, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
