package game

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/recompkit/rkl/catalog"
	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/stretchr/testify/require"
)

type fakeReleases struct {
	mu       sync.Mutex
	releases map[string]*client.Release
	errs     map[string]error
	calls    int
}

func (f *fakeReleases) LatestRelease(_ context.Context, repository string) (*client.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[repository]; ok {
		return nil, err
	}
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
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string, _ io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls++
	data, ok := f.files[url]
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !ok {
		return 0, gameerr.Newf(gameerr.NotFound, "no file at %s", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type fakeLauncher struct {
	launched []string
	err      error
}

func (f *fakeLauncher) Launch(exe string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.launched = append(f.launched, exe)
	return 4242, nil
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

type fixture struct {
	gamesFolder string
	releases    *fakeReleases
	downloader  *fakeDownloader
	launcher    *fakeLauncher
	installer   *Installer
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gamesFolder: filepath.Join(t.TempDir(), "games"),
		releases:    &fakeReleases{releases: map[string]*client.Release{}, errs: map[string]error{}},
		downloader:  &fakeDownloader{files: map[string][]byte{}},
		launcher:    &fakeLauncher{},
		now:         time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local),
	}
	f.installer = NewInstaller(f.downloader, nil)
	return f
}

func (f *fixture) env() Env {
	return Env{
		GamesFolder: f.gamesFolder,
		Platform:    Windows,
		Releases:    f.releases,
		Installer:   f.installer,
		Launcher:    f.launcher,
		Now:         func() time.Time { return f.now },
	}
}

// publish registers a release with one zip asset per name, each holding files.
func (f *fixture) publish(t *testing.T, repo, tag string, assets map[string]map[string]string, order ...string) {
	t.Helper()
	rel := &client.Release{TagName: tag, Body: "notes for " + tag}
	if len(order) == 0 {
		for name := range assets {
			order = append(order, name)
		}
	}
	for _, name := range order {
		url := "https://downloads.test/" + repo + "/" + tag + "/" + name
		f.downloader.files[url] = zipBytes(t, assets[name])
		rel.Assets = append(rel.Assets, client.Asset{Name: name, URL: url})
	}
	f.releases.releases[repo] = rel
}

func newTestGame(name string) *Game {
	return New(catalog.Entry{Name: name, Repository: "owner/" + name, FolderName: name})
}

var errBoom = errors.New("boom")
