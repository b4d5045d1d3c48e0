package operations

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultScanExclusions lists names never considered when scanning an install folder.
var DefaultScanExclusions = []string{
	".git", ".DS_Store", "Thumbs.db", "desktop.ini", "__MACOSX",
}

// Match describes a path found by FindFiles. Dir is true for directories accepted by the filter.
type Match struct {
	Path string
	Dir  bool
}

// FilterFunc decides whether an entry is a match. Returning true for a directory stops
// the walk from descending into it.
type FilterFunc func(path string, d fs.DirEntry) bool

// FindFiles walks root up to maxDepth levels below it (0 means only root's direct entries)
// and returns entries accepted by filter, in lexical order.
func FindFiles(root string, maxDepth int, exclusions []string, filter FilterFunc) ([]Match, error) {
	var matches []Match
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		for _, pattern := range exclusions {
			if matched, _ := filepath.Match(pattern, d.Name()); matched {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if filter(path, d) {
			matches = append(matches, Match{Path: path, Dir: d.IsDir()})
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() && depth(root, path) >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	return matches, walkErr
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator))
}
