package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/recompkit/rkl/pkg/hasher"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	customIconsDir = "custom-icons"
	iconsDir       = "icons"
)

var iconExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".ico": true, ".webp": true, ".bmp": true, ".gif": true,
}

// SetCustomIcon copies src into cacheFolder and uses it instead of the remote icon.
// It returns the path of the copy.
func (g *Game) SetCustomIcon(src, cacheFolder string) (string, error) {
	ext := strings.ToLower(filepath.Ext(src))
	if !iconExtensions[ext] {
		return "", gameerr.Newf(gameerr.Validation, "unsupported icon type %q", ext)
	}
	dir := filepath.Join(cacheFolder, customIconsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", gameerr.New(gameerr.Filesystem, "create icon folder", err)
	}

	dest := filepath.Join(dir, g.folderName+ext)
	if err := copyFile(src, dest); err != nil {
		return "", gameerr.New(gameerr.Filesystem, "copy icon", err)
	}

	g.mu.Lock()
	old := g.customIconPath
	g.customIconPath = dest
	g.mu.Unlock()
	if old != "" && old != dest {
		_ = os.Remove(old)
	}
	return dest, nil
}

// RestoreCustomIcon points g at an icon copied earlier, if the file is still there.
func (g *Game) RestoreCustomIcon(path string) bool {
	if path == "" || !exists(path) {
		return false
	}
	g.mu.Lock()
	g.customIconPath = path
	g.mu.Unlock()
	return true
}

// RemoveCustomIcon deletes the custom icon and falls back to the remote one.
func (g *Game) RemoveCustomIcon() error {
	g.mu.Lock()
	p := g.customIconPath
	g.customIconPath = ""
	g.mu.Unlock()
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return gameerr.New(gameerr.Filesystem, "remove icon", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".icon-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// IconCache keeps downloaded remote icons under Dir/icons, keyed by URL.
type IconCache struct {
	Dir        string
	Downloader Downloader
	group      singleflight.Group
}

// NewIconCache returns a cache rooted at cacheFolder.
func NewIconCache(cacheFolder string, d Downloader) *IconCache {
	return &IconCache{Dir: cacheFolder, Downloader: d}
}

// Path is where the icon for url is stored.
func (c *IconCache) Path(url string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if !iconExtensions[ext] {
		ext = ".png"
	}
	return filepath.Join(c.Dir, iconsDir, hasher.Key(url)+ext)
}

// Fetch returns the cached icon for url, downloading it first when needed. Concurrent
// fetches of the same URL share one download.
func (c *IconCache) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", gameerr.New(gameerr.Validation, "empty icon url", nil)
	}
	dest := c.Path(url)
	if exists(dest) {
		return dest, nil
	}

	v, err, _ := c.group.Do(dest, func() (interface{}, error) {
		if exists(dest) {
			return dest, nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", gameerr.New(gameerr.Filesystem, "create icon folder", err)
		}
		part := dest + ".part"
		if _, err := c.Downloader.Download(ctx, url, part, nil); err != nil {
			return "", err
		}
		if err := os.Rename(part, dest); err != nil {
			os.Remove(part)
			return "", gameerr.New(gameerr.Filesystem, "store icon", err)
		}
		log.Debug().Str("url", url).Str("path", dest).Msg("Icon cached")
		return dest, nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch icon %s: %w", url, err)
	}
	return v.(string), nil
}

// Clear removes every downloaded icon. Custom icons are kept.
func (c *IconCache) Clear() error {
	err := os.RemoveAll(filepath.Join(c.Dir, iconsDir))
	if err != nil {
		return gameerr.New(gameerr.Filesystem, "clear icon cache", err)
	}
	return nil
}
