package game

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformAction_AlphaScenario(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "1.2", map[string]map[string]string{
		"Alpha-win.zip": {"Alpha/Alpha.exe": "binary"},
	})
	g := newTestGame("Alpha")

	out, err := g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, out.Kind)
	assert.Equal(t, "1.2", out.Version)

	s := g.Snapshot()
	assert.Equal(t, Installed, s.Status)
	assert.Equal(t, "1.2", s.InstalledVersion)
	assert.Equal(t, "1.2", s.LatestVersion)
	assert.False(t, s.Loading)
	assert.FileExists(t, filepath.Join(f.gamesFolder, "Alpha", "Alpha.exe"))

	out, err = g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLaunched, out.Kind)
	assert.Equal(t, []string{filepath.Join(f.gamesFolder, "Alpha", "Alpha.exe")}, f.launcher.launched)

	played, ok := ReadLastPlayed(filepath.Join(f.gamesFolder, "Alpha"))
	require.True(t, ok)
	assert.True(t, f.now.Equal(played))
	assert.True(t, f.now.Equal(g.Snapshot().LastPlayed))
}

func TestPerformAction_InstallingIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	g := newTestGame("Alpha")
	g.status = Installing
	before := g.Snapshot()

	_, err := g.PerformAction(context.Background(), f.env())
	assert.True(t, gameerr.Is(err, gameerr.ConcurrentAction))
	assert.Equal(t, before, g.Snapshot())
	assert.Zero(t, f.releases.calls)
}

func TestPerformAction_BusyIsRejected(t *testing.T) {
	f := newFixture(t)
	g := newTestGame("Alpha")
	g.loading = true

	_, err := g.PerformAction(context.Background(), f.env())
	assert.True(t, gameerr.Is(err, gameerr.ConcurrentAction))
	assert.True(t, gameerr.Is(g.Delete(context.Background(), f.env()), gameerr.ConcurrentAction))
	assert.True(t, gameerr.Is(g.CheckStatus(context.Background(), f.env()), gameerr.ConcurrentAction))
}

func TestSelectExecutable_RejectedWhileBusy(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v1"))
	g := newTestGame("Alpha")
	g.RefreshLocal(f.gamesFolder)

	g.loading = true
	assert.True(t, gameerr.Is(g.SelectExecutable(f.gamesFolder, "Alpha.exe"), gameerr.ConcurrentAction))
	assert.True(t, gameerr.Is(g.ClearSelectedExecutable(f.gamesFolder), gameerr.ConcurrentAction))
	sel, err := ReadSelectedExecutable(folder)
	require.NoError(t, err)
	assert.Empty(t, sel)

	g.loading = false
	g.status = Installing
	assert.True(t, gameerr.Is(g.SelectExecutable(f.gamesFolder, "Alpha.exe"), gameerr.ConcurrentAction))

	g.status = Installed
	require.NoError(t, g.SelectExecutable(f.gamesFolder, "Alpha.exe"))
	require.NoError(t, g.ClearSelectedExecutable(f.gamesFolder))
}

func TestPerformAction_RollbackOnExtractFailure(t *testing.T) {
	for _, prior := range []Status{NotInstalled, UpdateAvailable} {
		t.Run(prior.String(), func(t *testing.T) {
			f := newFixture(t)
			f.publish(t, "owner/Alpha", "v2", map[string]map[string]string{"Alpha-win.zip": {"a.exe": "x"}})
			f.installer.Extract = func(src, name, dest string) error { return errBoom }

			g := newTestGame("Alpha")
			if prior == UpdateAvailable {
				folder := filepath.Join(f.gamesFolder, "Alpha")
				writeTestFile(t, filepath.Join(folder, "a.exe"), "old")
				require.NoError(t, WriteVersion(folder, "v1"))
			}
			require.NoError(t, g.CheckStatus(context.Background(), f.env()))
			require.Equal(t, prior, g.Snapshot().Status)

			_, err := g.PerformAction(context.Background(), f.env())
			require.Error(t, err)
			assert.True(t, gameerr.Is(err, gameerr.Filesystem))

			s := g.Snapshot()
			assert.Equal(t, prior, s.Status)
			assert.False(t, s.Loading)
		})
	}
}

func TestPerformAction_MultipleDownloadsNeedChoice(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "v1", map[string]map[string]string{
		"Alpha-win64.zip":       {"Alpha.exe": "x"},
		"Alpha-win64-debug.zip": {"AlphaDebug.exe": "x"},
		"Alpha-linux.zip":       {"alpha": "x"},
	}, "Alpha-linux.zip", "Alpha-win64.zip", "Alpha-win64-debug.zip")
	g := newTestGame("Alpha")

	out, err := g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, NeedsDownloadChoice, out.Kind)
	assert.Equal(t, []string{"Alpha-win64.zip", "Alpha-win64-debug.zip", "Alpha-linux.zip"}, out.Candidates)
	assert.Equal(t, NotInstalled, g.Snapshot().Status)
	assert.False(t, g.Snapshot().Loading)
	assert.Zero(t, f.downloader.calls)

	assert.True(t, gameerr.Is(g.SelectDownload("nope.zip"), gameerr.Validation))
	require.NoError(t, g.SelectDownload("Alpha-win64-debug.zip"))

	out, err = g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, out.Kind)
	assert.FileExists(t, filepath.Join(f.gamesFolder, "Alpha", "AlphaDebug.exe"))
	assert.Nil(t, g.Snapshot().SelectedDownload)
}

func TestPerformAction_ResolveErrorLeavesGameUntouched(t *testing.T) {
	f := newFixture(t)
	f.releases.errs["owner/Alpha"] = gameerr.New(gameerr.RateLimited, "slow down", nil)
	g := newTestGame("Alpha")
	before := g.Snapshot()

	_, err := g.PerformAction(context.Background(), f.env())
	assert.True(t, gameerr.Is(err, gameerr.RateLimited))
	assert.Equal(t, before, g.Snapshot())
}

func TestPerformAction_UpdateAvailableInstallsNewVersion(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "old.exe"), "old")
	require.NoError(t, WriteVersion(folder, "v1"))
	f.publish(t, "owner/Alpha", "v2", map[string]map[string]string{"Alpha-win.zip": {"new.exe": "new"}})

	g := newTestGame("Alpha")
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	assert.Equal(t, UpdateAvailable, g.Snapshot().Status)

	out, err := g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, out.Kind)
	assert.Equal(t, Installed, g.Snapshot().Status)
	assert.NoFileExists(t, filepath.Join(folder, "old.exe"))
	assert.FileExists(t, filepath.Join(folder, "new.exe"))
}

func TestCheckStatus_DerivesFromMarkers(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "v2", map[string]map[string]string{"Alpha-win.zip": {"a.exe": "x"}})
	g := newTestGame("Alpha")
	folder := filepath.Join(f.gamesFolder, "Alpha")

	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	s := g.Snapshot()
	assert.Equal(t, NotInstalled, s.Status)
	assert.True(t, s.Checked)
	assert.Equal(t, "notes for v2", s.Changelog)
	assert.Len(t, s.AvailableDownloads, 1)

	writeTestFile(t, filepath.Join(folder, "a.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v2"))
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	assert.Equal(t, Installed, g.Snapshot().Status)

	require.NoError(t, WriteVersion(folder, "v1"))
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	assert.Equal(t, UpdateAvailable, g.Snapshot().Status)
}

type blockingReleases struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingReleases) LatestRelease(ctx context.Context, repo string) (*client.Release, error) {
	close(b.started)
	<-b.release
	return &client.Release{TagName: "v9"}, nil
}

func TestCheckStatus_StaleResultIsDiscarded(t *testing.T) {
	f := newFixture(t)
	src := &blockingReleases{started: make(chan struct{}), release: make(chan struct{})}
	env := f.env()
	env.Releases = src
	g := newTestGame("Alpha")

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = g.CheckStatus(context.Background(), env)
	}()

	<-src.started
	g.Invalidate()
	close(src.release)
	wg.Wait()

	assert.True(t, gameerr.Is(err, gameerr.Stale))
	s := g.Snapshot()
	assert.Empty(t, s.LatestVersion)
	assert.False(t, s.Checked)
	assert.False(t, s.Loading)
}

func TestResolveExecutable_ZeroOneMany(t *testing.T) {
	f := newFixture(t)
	env := f.env()
	g := newTestGame("Alpha")
	folder := filepath.Join(f.gamesFolder, "Alpha")

	writeTestFile(t, filepath.Join(folder, "readme.txt"), "x")
	_, err := g.ResolveExecutable(env)
	assert.True(t, gameerr.Is(err, gameerr.NoLaunchable))

	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	exe, err := g.ResolveExecutable(env)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "Alpha.exe"), exe)
	sel, _ := ReadSelectedExecutable(folder)
	assert.Equal(t, exe, sel, "single candidate is persisted")

	require.NoError(t, g.ClearSelectedExecutable(f.gamesFolder))
	assert.Empty(t, g.Snapshot().SelectedExecutable)
	assert.Nil(t, g.Snapshot().AvailableExecutables)

	writeTestFile(t, filepath.Join(folder, "bin", "Tool.exe"), "x")
	_, err = g.ResolveExecutable(env)
	require.True(t, gameerr.Is(err, gameerr.AmbiguousChoice))
	assert.Equal(t, []string{filepath.Join(folder, "Alpha.exe"), filepath.Join(folder, "bin", "Tool.exe")}, gameerr.CandidatesOf(err))
	assert.Empty(t, g.Snapshot().SelectedExecutable)
	sel, _ = ReadSelectedExecutable(folder)
	assert.Empty(t, sel)
}

func TestPerformAction_ExecutableChoiceThenLaunch(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	writeTestFile(t, filepath.Join(folder, "Editor.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v1"))
	g := newTestGame("Alpha")
	g.RefreshLocal(f.gamesFolder)
	require.Equal(t, Installed, g.Snapshot().Status)

	out, err := g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, NeedsExecutableChoice, out.Kind)
	assert.Len(t, out.Candidates, 2)
	assert.Empty(t, f.launcher.launched)

	assert.True(t, gameerr.Is(g.SelectExecutable(f.gamesFolder, "../escape.exe"), gameerr.Validation))
	assert.True(t, gameerr.Is(g.SelectExecutable(f.gamesFolder, "Missing.exe"), gameerr.Validation))
	require.NoError(t, g.SelectExecutable(f.gamesFolder, "Editor.exe"))

	out, err = g.PerformAction(context.Background(), f.env())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLaunched, out.Kind)
	assert.Equal(t, filepath.Join(folder, "Editor.exe"), out.Executable)
}

func TestPerformAction_LaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errBoom
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	g := newTestGame("Alpha")
	g.RefreshLocal(f.gamesFolder)

	_, err := g.PerformAction(context.Background(), f.env())
	assert.Error(t, err)
	_, ok := ReadLastPlayed(folder)
	assert.False(t, ok)
	assert.False(t, g.Snapshot().Loading)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	g := newTestGame("Alpha")
	assert.True(t, gameerr.Is(g.Delete(context.Background(), f.env()), gameerr.Validation))

	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v1"))
	require.NoError(t, WriteLastPlayed(folder, f.now))
	require.NoError(t, WriteSelectedExecutable(folder, "Alpha.exe"))
	g.RefreshLocal(f.gamesFolder)
	require.Equal(t, Installed, g.Snapshot().Status)
	require.NotEmpty(t, g.Snapshot().SelectedExecutable)

	require.NoError(t, g.Delete(context.Background(), f.env()))
	s := g.Snapshot()
	assert.Equal(t, NotInstalled, s.Status)
	assert.Empty(t, s.InstalledVersion)
	assert.Empty(t, s.SelectedExecutable)
	assert.True(t, s.LastPlayed.IsZero())
	assert.False(t, s.Loading)
	assert.NoDirExists(t, folder)
}

func TestRefreshLocal_SkipsBusyGame(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	g := newTestGame("Alpha")
	g.loading = true
	g.RefreshLocal(f.gamesFolder)
	assert.Equal(t, NotInstalled, g.Snapshot().Status)

	g.loading = false
	g.RefreshLocal(f.gamesFolder)
	assert.Equal(t, Installed, g.Snapshot().Status)
}

func TestSnapshot_IsACopy(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "v1", map[string]map[string]string{"a.zip": {"a.exe": "x"}})
	g := newTestGame("Alpha")
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))

	s := g.Snapshot()
	s.AvailableDownloads[0].Name = "mutated"
	assert.Equal(t, "a.zip", g.Snapshot().AvailableDownloads[0].Name)
}

func TestSnapshot_IconPrefersCustom(t *testing.T) {
	s := Snapshot{IconURL: "https://x/icon.png"}
	assert.Equal(t, "https://x/icon.png", s.Icon())
	s.CustomIconPath = "/cache/custom.png"
	assert.Equal(t, "/cache/custom.png", s.Icon())
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "v1", map[string]map[string]string{"a.zip": {"a.exe": "x"}})
	g := newTestGame("Alpha")
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	require.True(t, g.Snapshot().Checked)

	g.Invalidate()
	s := g.Snapshot()
	assert.False(t, s.Checked)
	assert.Nil(t, s.AvailableDownloads)
	assert.Equal(t, "v1", s.LatestVersion)
}

func TestInvalidate_DropsStateOfOldFolder(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v1"))
	require.NoError(t, WriteLastPlayed(folder, f.now))
	g := newTestGame("Alpha")
	g.RefreshLocal(f.gamesFolder)
	require.Equal(t, Installed, g.Snapshot().Status)

	g.Invalidate()
	s := g.Snapshot()
	assert.Equal(t, NotInstalled, s.Status)
	assert.Empty(t, s.InstalledVersion)
	assert.True(t, s.LastPlayed.IsZero())
	assert.Empty(t, s.SelectedExecutable)

	g.RefreshLocal(f.gamesFolder)
	s = g.Snapshot()
	assert.Equal(t, Installed, s.Status)
	assert.Equal(t, "v1", s.InstalledVersion)
}

type blockingDownloader struct {
	started chan struct{}
	release chan struct{}
	next    Downloader
}

func (b *blockingDownloader) Download(ctx context.Context, url, dest string, progress io.Writer) (int64, error) {
	close(b.started)
	<-b.release
	return b.next.Download(ctx, url, dest, progress)
}

func TestPerformAction_InstallInvalidatedMidwayEndsNotInstalled(t *testing.T) {
	f := newFixture(t)
	f.publish(t, "owner/Alpha", "v2", map[string]map[string]string{"alpha-win.zip": {"Alpha.exe": "new"}})
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "old")
	require.NoError(t, WriteVersion(folder, "v1"))
	g := newTestGame("Alpha")
	require.NoError(t, g.CheckStatus(context.Background(), f.env()))
	require.Equal(t, UpdateAvailable, g.Snapshot().Status)

	dl := &blockingDownloader{started: make(chan struct{}), release: make(chan struct{}), next: f.downloader}
	env := f.env()
	env.Installer = NewInstaller(dl, nil)

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = g.PerformAction(context.Background(), env)
	}()

	<-dl.started
	g.Invalidate()
	assert.Equal(t, Installing, g.Snapshot().Status)
	close(dl.release)
	wg.Wait()

	assert.True(t, gameerr.Is(err, gameerr.Stale))
	s := g.Snapshot()
	assert.Equal(t, NotInstalled, s.Status)
	assert.Empty(t, s.InstalledVersion)
	assert.False(t, s.Loading)
}

func TestRestoreRelease_DoesNotMarkChecked(t *testing.T) {
	f := newFixture(t)
	folder := filepath.Join(f.gamesFolder, "Alpha")
	writeTestFile(t, filepath.Join(folder, "Alpha.exe"), "x")
	require.NoError(t, WriteVersion(folder, "v1"))
	g := newTestGame("Alpha")
	g.RefreshLocal(f.gamesFolder)

	g.RestoreRelease(f.gamesFolder, &Resolution{Version: "v2", Changelog: "cached", Assets: []client.Asset{{Name: "a.zip"}}})
	s := g.Snapshot()
	assert.Equal(t, UpdateAvailable, s.Status)
	assert.Equal(t, "cached", s.Changelog)
	assert.Len(t, s.AvailableDownloads, 1)
	assert.False(t, s.Checked)

	g.RestoreRelease(f.gamesFolder, nil)
	assert.Equal(t, "v2", g.Snapshot().LatestVersion)
}
