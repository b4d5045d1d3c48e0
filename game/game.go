package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/recompkit/rkl/catalog"
	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
)

// Status is the install state of a game.
type Status int

const (
	NotInstalled Status = iota
	Installed
	UpdateAvailable
	Installing
)

func (s Status) String() string {
	switch s {
	case Installed:
		return "Installed"
	case UpdateAvailable:
		return "UpdateAvailable"
	case Installing:
		return "Installing"
	default:
		return "NotInstalled"
	}
}

// Env carries what a game operation needs from its library. GamesFolder is captured
// when the operation starts.
type Env struct {
	GamesFolder string
	Platform    Platform
	Releases    ReleaseSource
	Installer   *Installer
	Launcher    Launcher
	Now         func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OutcomeKind describes what PerformAction did.
type OutcomeKind int

const (
	OutcomeInstalled OutcomeKind = iota
	OutcomeLaunched
	NeedsDownloadChoice
	NeedsExecutableChoice
)

// Outcome is the result of PerformAction. For the Needs* kinds nothing happened yet:
// the caller picks one of Candidates with SelectDownload or SelectExecutable and calls
// PerformAction again.
type Outcome struct {
	Kind       OutcomeKind
	Candidates []string
	Version    string // installed version, for OutcomeInstalled
	Executable string // launched path, for OutcomeLaunched
	PID        int
}

// Snapshot is a copy of a game's state, safe to read without locking.
type Snapshot struct {
	Name                 string
	Repository           string
	FolderName           string
	Status               Status
	InstalledVersion     string
	LatestVersion        string
	Changelog            string
	Experimental         bool
	Custom               bool
	Loading              bool
	Hidden               bool
	Checked              bool
	AvailableDownloads   []client.Asset
	SelectedDownload     *client.Asset
	AvailableExecutables []string
	SelectedExecutable   string
	IconURL              string
	CustomIconPath       string
	LastPlayed           time.Time // zero when never played
}

// IsInstalled reports whether a build is present on disk.
func (s Snapshot) IsInstalled() bool {
	return s.Status == Installed || s.Status == UpdateAvailable
}

// Icon returns the custom icon when one is set, otherwise the remote icon URL.
func (s Snapshot) Icon() string {
	if s.CustomIconPath != "" {
		return s.CustomIconPath
	}
	return s.IconURL
}

// Game is one tracked game. All state changes go through its methods; a game runs at
// most one action at a time.
type Game struct {
	mu sync.Mutex

	name         string
	repository   string
	folderName   string
	experimental bool
	custom       bool
	iconURL      string

	status           Status
	installedVersion string
	latestVersion    string
	changelog        string
	loading          bool
	hidden           bool
	checked          bool
	epoch            uint64
	lastPlayed       time.Time

	downloads          []client.Asset
	selectedDownload   *client.Asset
	executables        []string
	selectedExecutable string
	customIconPath     string
}

// New creates a game from a catalog entry.
func New(e catalog.Entry) *Game {
	return &Game{
		name:         e.Name,
		repository:   e.Repository,
		folderName:   e.FolderName,
		experimental: e.Experimental,
		custom:       e.Custom,
		iconURL:      e.IconURL,
	}
}

func (g *Game) Name() string       { return g.name }
func (g *Game) FolderName() string { return g.folderName }
func (g *Game) Repository() string { return g.repository }

// Folder is the install folder of g below gamesFolder.
func (g *Game) Folder(gamesFolder string) string {
	return filepath.Join(gamesFolder, g.folderName)
}

// Snapshot returns a copy of the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		Name:               g.name,
		Repository:         g.repository,
		FolderName:         g.folderName,
		Status:             g.status,
		InstalledVersion:   g.installedVersion,
		LatestVersion:      g.latestVersion,
		Changelog:          g.changelog,
		Experimental:       g.experimental,
		Custom:             g.custom,
		Loading:            g.loading,
		Hidden:             g.hidden,
		Checked:            g.checked,
		SelectedExecutable: g.selectedExecutable,
		IconURL:            g.iconURL,
		CustomIconPath:     g.customIconPath,
		LastPlayed:         g.lastPlayed,
	}
	if g.downloads != nil {
		s.AvailableDownloads = append([]client.Asset(nil), g.downloads...)
	}
	if g.selectedDownload != nil {
		d := *g.selectedDownload
		s.SelectedDownload = &d
	}
	if g.executables != nil {
		s.AvailableExecutables = append([]string(nil), g.executables...)
	}
	return s
}

func (g *Game) SetHidden(hidden bool) {
	g.mu.Lock()
	g.hidden = hidden
	g.mu.Unlock()
}

// Invalidate marks derived state as stale after the games folder moved. Everything
// read from the old folder is dropped and the game counts as not installed until
// RefreshLocal or CheckStatus reads the new one. Results of operations started before
// the call are discarded.
func (g *Game) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	g.checked = false
	g.downloads = nil
	g.selectedDownload = nil
	g.executables = nil
	g.selectedExecutable = ""
	g.installedVersion = ""
	g.lastPlayed = time.Time{}
	if g.status != Installing {
		g.status = NotInstalled
	}
}

// begin reserves g for one operation. It fails with ConcurrentAction when another
// operation is running.
func (g *Game) begin() (Status, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == Installing {
		return g.status, g.epoch, gameerr.Newf(gameerr.ConcurrentAction, "%s is busy", g.name)
	}
	g.loading = true
	return g.status, g.epoch, nil
}

// checkIdle fails with ConcurrentAction while an operation is running.
func (g *Game) checkIdle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == Installing {
		return gameerr.Newf(gameerr.ConcurrentAction, "%s is busy", g.name)
	}
	return nil
}

func (g *Game) end() {
	g.mu.Lock()
	g.loading = false
	g.mu.Unlock()
}

func (g *Game) staleError() error {
	return gameerr.Newf(gameerr.Stale, "games folder changed while %s was busy", g.name)
}

// RefreshLocal re-reads the install folder and markers without touching the network.
// Busy games are skipped.
func (g *Game) RefreshLocal(gamesFolder string) {
	folder := g.Folder(gamesFolder)
	installed := IsInstalled(folder)
	version, err := ReadVersion(folder)
	if err != nil {
		log.Warn().Err(err).Str("game", g.name).Msg("Failed to read version marker")
	}
	lastPlayed, _ := ReadLastPlayed(folder)
	selected, _ := ReadSelectedExecutable(folder)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == Installing {
		return
	}
	g.installedVersion = version
	g.status = DeriveStatus(installed, version, g.latestVersion)
	g.lastPlayed = lastPlayed
	if selected != "" && exists(selected) {
		g.selectedExecutable = selected
	}
}

// RestoreRelease applies a previously resolved release, for example one read from the
// release cache, without counting as a fresh check. Busy games are skipped.
func (g *Game) RestoreRelease(gamesFolder string, res *Resolution) {
	if res == nil {
		return
	}
	installed := IsInstalled(g.Folder(gamesFolder))

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == Installing {
		return
	}
	g.latestVersion = res.Version
	g.changelog = res.Changelog
	g.downloads = append([]client.Asset(nil), res.Assets...)
	g.status = DeriveStatus(installed, g.installedVersion, res.Version)
}

// CheckStatus resolves the latest release and re-derives the status. On error the
// game is left unchanged.
func (g *Game) CheckStatus(ctx context.Context, env Env) error {
	_, epoch, err := g.begin()
	if err != nil {
		return err
	}
	defer g.end()
	return g.checkStatus(ctx, env, epoch)
}

func (g *Game) checkStatus(ctx context.Context, env Env, epoch uint64) error {
	folder := g.Folder(env.GamesFolder)
	res, err := Resolve(ctx, env.Releases, g.repository, env.Platform)
	if err != nil {
		log.Warn().Err(err).Str("game", g.name).Msg("Release check failed")
		return err
	}
	installed := IsInstalled(folder)
	version, err := ReadVersion(folder)
	if err != nil {
		return gameerr.New(gameerr.Filesystem, "read version marker", err)
	}
	lastPlayed, _ := ReadLastPlayed(folder)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		return g.staleError()
	}
	g.latestVersion = res.Version
	g.changelog = res.Changelog
	g.downloads = res.Assets
	g.installedVersion = version
	g.lastPlayed = lastPlayed
	g.status = DeriveStatus(installed, version, res.Version)
	g.checked = true
	if g.selectedDownload != nil && !containsAsset(res.Assets, g.selectedDownload.Name) {
		g.selectedDownload = nil
	}
	log.Debug().Str("game", g.name).Str("status", g.status.String()).Str("latest", res.Version).Msg("Status derived")
	return nil
}

func containsAsset(assets []client.Asset, name string) bool {
	for _, a := range assets {
		if a.Name == name {
			return true
		}
	}
	return false
}

// SelectDownload picks one of the available downloads by asset name.
func (g *Game) SelectDownload(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == Installing {
		return gameerr.Newf(gameerr.ConcurrentAction, "%s is busy", g.name)
	}
	for _, a := range g.downloads {
		if a.Name == name {
			asset := a
			g.selectedDownload = &asset
			return nil
		}
	}
	return gameerr.Newf(gameerr.Validation, "%s has no download named %q", g.name, name)
}

// PerformAction installs or updates the game, or launches it when it is up to date.
// When a choice between several downloads or executables is needed, the Outcome says
// so and nothing else happens.
func (g *Game) PerformAction(ctx context.Context, env Env) (Outcome, error) {
	status, epoch, err := g.begin()
	if err != nil {
		return Outcome{}, err
	}
	defer g.end()

	if status != Installed {
		g.mu.Lock()
		needResolve := len(g.downloads) == 0
		g.mu.Unlock()
		if needResolve {
			if err := g.checkStatus(ctx, env, epoch); err != nil {
				return Outcome{}, err
			}
			g.mu.Lock()
			status = g.status
			g.mu.Unlock()
		}
	}

	if status == Installed {
		return g.launch(env, epoch)
	}
	return g.install(ctx, env, epoch)
}

func (g *Game) install(ctx context.Context, env Env, epoch uint64) (Outcome, error) {
	g.mu.Lock()
	var asset client.Asset
	switch {
	case g.selectedDownload != nil:
		asset = *g.selectedDownload
	case len(g.downloads) == 1:
		asset = g.downloads[0]
	case len(g.downloads) == 0:
		g.mu.Unlock()
		return Outcome{}, gameerr.Newf(gameerr.NotFound, "latest release of %s has no downloads", g.name)
	default:
		names := make([]string, len(g.downloads))
		for i, a := range g.downloads {
			names[i] = a.Name
		}
		g.mu.Unlock()
		return Outcome{Kind: NeedsDownloadChoice, Candidates: names}, nil
	}
	prev := g.status
	version := g.latestVersion
	g.status = Installing
	g.mu.Unlock()

	err := env.Installer.Install(ctx, env.GamesFolder, g.folderName, asset, version)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		g.status = NotInstalled
		return Outcome{}, g.staleError()
	}
	if err != nil {
		g.status = prev
		log.Error().Err(err).Str("game", g.name).Msg("Install failed")
		return Outcome{}, err
	}
	folder := g.Folder(env.GamesFolder)
	g.installedVersion = version
	g.status = DeriveStatus(true, version, g.latestVersion)
	g.selectedDownload = nil
	g.executables = nil
	g.selectedExecutable, _ = ReadSelectedExecutable(folder)
	g.lastPlayed, _ = ReadLastPlayed(folder)
	return Outcome{Kind: OutcomeInstalled, Version: version}, nil
}

func (g *Game) launch(env Env, epoch uint64) (Outcome, error) {
	exe, err := g.ResolveExecutable(env)
	if gameerr.Is(err, gameerr.AmbiguousChoice) {
		return Outcome{Kind: NeedsExecutableChoice, Candidates: gameerr.CandidatesOf(err)}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	launcher := env.Launcher
	if launcher == nil {
		launcher = ProcessLauncher{}
	}
	pid, err := launcher.Launch(exe)
	if err != nil {
		return Outcome{}, gameerr.New(gameerr.Filesystem, "launch "+filepath.Base(exe), err)
	}

	now := env.now()
	if err := WriteLastPlayed(g.Folder(env.GamesFolder), now); err != nil {
		log.Warn().Err(err).Str("game", g.name).Msg("Failed to write last played marker")
	}
	g.mu.Lock()
	if g.epoch == epoch {
		g.lastPlayed = now.Truncate(time.Second)
	}
	g.mu.Unlock()
	log.Info().Str("game", g.name).Str("executable", exe).Int("pid", pid).Msg("Game launched")
	return Outcome{Kind: OutcomeLaunched, Executable: exe, PID: pid}, nil
}

// ResolveExecutable returns the executable to launch. A persisted selection that still
// exists wins; otherwise the install folder is scanned. A single candidate is selected
// and persisted, several yield an AmbiguousChoice error listing them, none yields
// NoLaunchable.
func (g *Game) ResolveExecutable(env Env) (string, error) {
	folder := g.Folder(env.GamesFolder)
	if sel, err := ReadSelectedExecutable(folder); err == nil && sel != "" && exists(sel) {
		g.mu.Lock()
		g.selectedExecutable = sel
		g.mu.Unlock()
		return sel, nil
	}

	candidates, err := FindExecutables(folder, env.Platform)
	if err != nil {
		return "", gameerr.New(gameerr.Filesystem, "scan install folder", err)
	}

	switch len(candidates) {
	case 0:
		g.mu.Lock()
		g.executables = nil
		g.mu.Unlock()
		return "", gameerr.Newf(gameerr.NoLaunchable, "no launchable file found for %s", g.name)
	case 1:
		if err := WriteSelectedExecutable(folder, candidates[0]); err != nil {
			return "", gameerr.New(gameerr.Filesystem, "save executable selection", err)
		}
		g.mu.Lock()
		g.executables = candidates
		g.selectedExecutable = candidates[0]
		g.mu.Unlock()
		return candidates[0], nil
	default:
		g.mu.Lock()
		g.executables = candidates
		g.mu.Unlock()
		return "", gameerr.Ambiguous("several executables found for "+g.name, candidates)
	}
}

// SelectExecutable persists path (absolute or relative to the install folder) as the
// executable to launch. The path must exist inside the install folder.
func (g *Game) SelectExecutable(gamesFolder, path string) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	folder := g.Folder(gamesFolder)
	abs, err := insideFolder(folder, path)
	if err != nil {
		return gameerr.New(gameerr.Validation, "invalid executable", err)
	}
	if !exists(abs) {
		return gameerr.Newf(gameerr.Validation, "%s does not exist", path)
	}
	if err := WriteSelectedExecutable(folder, abs); err != nil {
		return gameerr.New(gameerr.Filesystem, "save executable selection", err)
	}
	g.mu.Lock()
	g.selectedExecutable = abs
	g.mu.Unlock()
	return nil
}

// ClearSelectedExecutable forgets the executable choice so the next launch rescans.
func (g *Game) ClearSelectedExecutable(gamesFolder string) error {
	if err := g.checkIdle(); err != nil {
		return err
	}
	if err := RemoveSelectedExecutable(g.Folder(gamesFolder)); err != nil {
		return gameerr.New(gameerr.Filesystem, "remove executable selection", err)
	}
	g.mu.Lock()
	g.selectedExecutable = ""
	g.executables = nil
	g.mu.Unlock()
	return nil
}

// Delete removes the install folder together with its markers.
func (g *Game) Delete(ctx context.Context, env Env) error {
	status, epoch, err := g.begin()
	if err != nil {
		return err
	}
	defer g.end()
	if status == NotInstalled {
		return gameerr.Newf(gameerr.Validation, "%s is not installed", g.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	folder := g.Folder(env.GamesFolder)
	if err := os.RemoveAll(folder); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("game", g.name).Msg("Failed to delete game folder")
		return gameerr.New(gameerr.Filesystem, "delete "+g.folderName, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		return g.staleError()
	}
	g.installedVersion = ""
	g.status = DeriveStatus(false, "", g.latestVersion)
	g.selectedExecutable = ""
	g.executables = nil
	g.selectedDownload = nil
	g.lastPlayed = time.Time{}
	log.Info().Str("game", g.name).Msg("Game deleted")
	return nil
}
