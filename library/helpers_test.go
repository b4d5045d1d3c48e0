package library_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/recompkit/rkl/catalog"
	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/config"
	"github.com/recompkit/rkl/db"
	"github.com/recompkit/rkl/game"
	"github.com/recompkit/rkl/library"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeReleases struct {
	mu       sync.Mutex
	releases map[string]*client.Release
}

func (f *fakeReleases) LatestRelease(_ context.Context, repository string) (*client.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.releases[repository]
	if !ok {
		return nil, gameerr.Newf(gameerr.NotFound, "no release for %s", repository)
	}
	cp := *rel
	return &cp, nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeDownloader) Download(_ context.Context, url, dest string, _ io.Writer) (int64, error) {
	f.mu.Lock()
	data, ok := f.files[url]
	f.mu.Unlock()
	if !ok {
		return 0, gameerr.Newf(gameerr.NotFound, "no file at %s", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	return int64(len(data)), os.WriteFile(dest, data, 0o644)
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
}

func (f *fakeLauncher) Launch(exe string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, exe)
	return 99, nil
}

type env struct {
	t          *testing.T
	conn       *gorm.DB
	settings   config.Settings
	entries    []catalog.Entry
	releases   *fakeReleases
	downloader *fakeDownloader
	launcher   *fakeLauncher
	now        time.Time
}

func newEnv(t *testing.T, entries ...catalog.Entry) *env {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "rkl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	s := config.Defaults()
	s.Platform = "windows"
	s.GamesPath = filepath.Join(dir, "games")
	s.CachePath = filepath.Join(dir, "cache")
	s.CustomGamesFile = ""

	return &env{
		t:          t,
		conn:       conn,
		settings:   s,
		entries:    entries,
		releases:   &fakeReleases{releases: map[string]*client.Release{}},
		downloader: &fakeDownloader{files: map[string][]byte{}},
		launcher:   &fakeLauncher{},
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local),
	}
}

func (e *env) manager() *library.Manager {
	e.t.Helper()
	m, err := library.New(e.settings, library.Deps{
		Releases:     e.releases,
		Downloader:   e.downloader,
		Launcher:     e.launcher,
		Hidden:       db.NewHiddenRepository(e.conn),
		ReleaseCache: db.NewReleaseCacheRepository(e.conn),
		Icons:        db.NewCustomIconRepository(e.conn),
		Catalog:      func() ([]catalog.Entry, error) { return e.entries, nil },
		Now:          func() time.Time { return e.now },
	})
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = m.Close() })
	return m
}

// publish registers a release of repo holding one zip asset with files.
func (e *env) publish(repo, tag, asset string, files map[string]string) {
	e.t.Helper()
	url := "https://downloads.test/" + repo + "/" + tag + "/" + asset
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(e.t, err)
		_, err = w.Write([]byte(body))
		require.NoError(e.t, err)
	}
	require.NoError(e.t, zw.Close())
	e.downloader.files[url] = buf.Bytes()
	e.releases.releases[repo] = &client.Release{
		TagName: tag,
		Body:    "notes " + tag,
		Assets:  []client.Asset{{Name: asset, URL: url}},
	}
}

// install puts a build of folder on disk, as if installed earlier.
func (e *env) install(folder, version string) {
	e.t.Helper()
	dir := filepath.Join(e.settings.GamesPath, folder)
	require.NoError(e.t, os.MkdirAll(dir, 0o755))
	require.NoError(e.t, os.WriteFile(filepath.Join(dir, folder+".exe"), []byte("x"), 0o644))
	if version != "" {
		require.NoError(e.t, os.WriteFile(filepath.Join(dir, "version.txt"), []byte(version), 0o644))
	}
}

func entry(name string) catalog.Entry {
	return catalog.Entry{Name: name, Repository: "owner/" + name, FolderName: name}
}

func gameNames(snaps []game.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Name
	}
	return out
}
