package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/recompkit/rkl/catalog"
	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/config"
	"github.com/recompkit/rkl/db"
	"github.com/recompkit/rkl/game"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/recompkit/rkl/pkg/pool"
	"github.com/recompkit/rkl/pkg/validation"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps are the collaborators of a Manager. Launcher, Catalog and Now default to the
// real implementations when nil.
type Deps struct {
	Releases     game.ReleaseSource
	Downloader   game.Downloader
	Launcher     game.Launcher
	Hidden       db.HiddenRepository
	ReleaseCache db.ReleaseCacheRepository
	Icons        db.CustomIconRepository
	Catalog      func() ([]catalog.Entry, error)
	Progress     io.Writer
	Now          func() time.Time
}

// Manager owns the game collection and routes caller requests to the games.
type Manager struct {
	mu          sync.RWMutex
	settings    config.Settings
	gamesFolder string
	cacheFolder string
	platform    game.Platform
	games       []*game.Game
	hidden      map[string]bool

	// hiddenMu serializes read-modify-write cycles on the hidden set.
	hiddenMu sync.Mutex

	deps      Deps
	installer *game.Installer
	icons     *game.IconCache
	events    *broker

	watchMu    sync.Mutex
	watcher    *fsnotify.Watcher
	debouncers map[string]*time.Timer
}

// New creates a manager. Call LoadGames or LoadLocal before using it.
func New(settings config.Settings, deps Deps) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, gameerr.New(gameerr.Validation, "invalid settings", err)
	}
	if deps.Releases == nil || deps.Downloader == nil {
		return nil, gameerr.New(gameerr.Internal, "release source and downloader are required", nil)
	}
	if deps.Hidden == nil || deps.ReleaseCache == nil || deps.Icons == nil {
		return nil, gameerr.New(gameerr.Internal, "repositories are required", nil)
	}
	if deps.Launcher == nil {
		deps.Launcher = game.ProcessLauncher{}
	}
	if deps.Catalog == nil {
		customFile := settings.CustomGamesFile
		deps.Catalog = func() ([]catalog.Entry, error) { return catalog.Load(customFile) }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := &Manager{
		settings:    settings,
		gamesFolder: settings.GamesPath,
		cacheFolder: settings.CachePath,
		platform:    game.ParsePlatform(settings.Platform).Resolve(),
		hidden:      make(map[string]bool),
		deps:        deps,
		installer:   game.NewInstaller(deps.Downloader, deps.Progress),
		icons:       game.NewIconCache(settings.CachePath, deps.Downloader),
		events:      newBroker(),
		debouncers:  make(map[string]*time.Timer),
	}
	log.Debug().Str("games", m.gamesFolder).Str("platform", m.platform.String()).Msg("Library manager created")
	return m, nil
}

// NewWithClient wires a manager to a GitHub client and the gorm database.
func NewWithClient(settings config.Settings, c *client.Client, conn *gorm.DB, progress io.Writer) (*Manager, error) {
	return New(settings, Deps{
		Releases:     c,
		Downloader:   c,
		Hidden:       db.NewHiddenRepository(conn),
		ReleaseCache: db.NewReleaseCacheRepository(conn),
		Icons:        db.NewCustomIconRepository(conn),
		Progress:     progress,
	})
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (m *Manager) Subscribe() (<-chan Event, func()) { return m.events.subscribe() }

func (m *Manager) publish(e Event) { m.events.publish(e) }

func (m *Manager) fail(name, op string, err error) {
	log.Error().Err(err).Str("game", name).Str("op", op).Msg("Operation failed")
	m.publish(Event{Kind: OperationFailed, Game: name, Op: op, Err: err})
}

// Settings returns a copy of the settings as changed by the manager (games folder,
// sort mode, visibility toggles). Callers persist them.
func (m *Manager) Settings() config.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *Manager) GamesFolder() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gamesFolder
}

func (m *Manager) CacheFolder() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheFolder
}

func (m *Manager) Platform() game.Platform { return m.platform }

func (m *Manager) env() game.Env {
	return game.Env{
		GamesFolder: m.GamesFolder(),
		Platform:    m.platform,
		Releases:    m.deps.Releases,
		Installer:   m.installer,
		Launcher:    m.deps.Launcher,
		Now:         m.deps.Now,
	}
}

func (m *Manager) find(name string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.games {
		if g.Name() == name {
			return g, nil
		}
	}
	return nil, gameerr.Newf(gameerr.NotFound, "unknown game %q", name)
}

func (m *Manager) gameList() []*game.Game {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*game.Game(nil), m.games...)
}

func (m *Manager) visible(s game.Snapshot) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s.Hidden {
		return false
	}
	if s.Experimental && !m.settings.ShowExperimental {
		return false
	}
	if s.Custom && !m.settings.ShowCustom {
		return false
	}
	return true
}

func (m *Manager) visibleGames() []*game.Game {
	var out []*game.Game
	for _, g := range m.gameList() {
		if m.visible(g.Snapshot()) {
			out = append(out, g)
		}
	}
	return out
}

// Games returns snapshots of the visible games in display order.
func (m *Manager) Games() []game.Snapshot {
	games := m.visibleGames()
	out := make([]game.Snapshot, len(games))
	for i, g := range games {
		out[i] = g.Snapshot()
	}
	return out
}

// AllGames returns snapshots of every game, hidden ones included.
func (m *Manager) AllGames() []game.Snapshot {
	games := m.gameList()
	out := make([]game.Snapshot, len(games))
	for i, g := range games {
		out[i] = g.Snapshot()
	}
	return out
}

// Game returns the snapshot of one game.
func (m *Manager) Game(name string) (game.Snapshot, error) {
	g, err := m.find(name)
	if err != nil {
		return game.Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// LoadLocal rebuilds the game list from the catalog without touching the network.
// Install state comes from the games folder; release data comes from the release cache.
func (m *Manager) LoadLocal(ctx context.Context) error {
	entries, err := m.deps.Catalog()
	if err != nil {
		err = fmt.Errorf("load catalog: %w", err)
		m.fail("", "load", err)
		return err
	}

	hiddenNames, err := m.deps.Hidden.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read hidden games, showing all")
	}
	hidden := make(map[string]bool, len(hiddenNames))
	for _, n := range hiddenNames {
		hidden[n] = true
	}

	customIcons := map[string]string{}
	if icons, err := m.deps.Icons.List(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to read custom icons")
	} else {
		for _, ic := range icons {
			customIcons[ic.GameName] = ic.Path
		}
	}

	gamesFolder := m.GamesFolder()
	games := make([]*game.Game, 0, len(entries))
	for _, e := range entries {
		g := game.New(e)
		g.SetHidden(hidden[e.Name])
		if p, ok := customIcons[e.Name]; ok && !g.RestoreCustomIcon(p) {
			log.Debug().Str("game", e.Name).Str("path", p).Msg("Custom icon missing, using remote icon")
		}
		g.RefreshLocal(gamesFolder)
		if res := m.cachedResolution(ctx, e.Repository); res != nil {
			g.RestoreRelease(gamesFolder, res)
		}
		games = append(games, g)
	}

	m.mu.Lock()
	m.games = games
	m.hidden = hidden
	mode := ParseSortMode(m.settings.SortBy)
	m.mu.Unlock()
	m.sortGames(mode)

	log.Info().Int("games", len(games)).Int("hidden", len(hidden)).Msg("Library loaded")
	m.publish(Event{Kind: LibraryReloaded, Op: "load"})
	return nil
}

// LoadGames reloads the catalog and local state, then checks every visible game for
// its latest release.
func (m *Manager) LoadGames(ctx context.Context) (RefreshReport, error) {
	if err := m.LoadLocal(ctx); err != nil {
		return RefreshReport{}, err
	}
	return m.RefreshAll(ctx), nil
}

// RefreshReport lists the outcome of a bulk status check.
type RefreshReport struct {
	Checked []string
	Updates []string // games with UpdateAvailable after the check
	Failed  map[string]error
}

// Err joins the per-game failures, or returns nil when every check succeeded.
func (r RefreshReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for n := range r.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	errs := make([]error, len(names))
	for i, n := range names {
		errs[i] = fmt.Errorf("%s: %w", n, r.Failed[n])
	}
	return errors.Join(errs...)
}

// RefreshAll checks every visible game. A failing game never stops the others.
func (m *Manager) RefreshAll(ctx context.Context) RefreshReport {
	return m.refresh(ctx, "refresh", m.visibleGames())
}

// CheckAllUpdates checks the visible installed games only.
func (m *Manager) CheckAllUpdates(ctx context.Context) RefreshReport {
	var installed []*game.Game
	for _, g := range m.visibleGames() {
		if g.Snapshot().IsInstalled() {
			installed = append(installed, g)
		}
	}
	return m.refresh(ctx, "check-updates", installed)
}

func (m *Manager) refresh(ctx context.Context, op string, games []*game.Game) RefreshReport {
	report := RefreshReport{Failed: map[string]error{}}
	env := m.env()
	workers := m.Settings().RefreshWorkers

	var mu sync.Mutex
	errs := pool.Run(ctx, games, workers, func(ctx context.Context, g *game.Game) error {
		if err := g.CheckStatus(ctx, env); err != nil {
			mu.Lock()
			report.Failed[g.Name()] = err
			mu.Unlock()
			m.fail(g.Name(), op, err)
			return err
		}
		s := g.Snapshot()
		mu.Lock()
		report.Checked = append(report.Checked, s.Name)
		if s.Status == game.UpdateAvailable {
			report.Updates = append(report.Updates, s.Name)
		}
		mu.Unlock()
		m.cacheRelease(ctx, s)
		m.publish(Event{Kind: GameChanged, Game: s.Name, Op: op})
		return nil
	})
	if len(errs) > len(report.Failed) {
		log.Error().Int("errors", len(errs)).Msg("Some status checks did not finish")
	}

	sort.Strings(report.Checked)
	sort.Strings(report.Updates)
	log.Info().Int("checked", len(report.Checked)).Int("failed", len(report.Failed)).Int("updates", len(report.Updates)).Msg("Status check finished")
	return report
}

// run looks up name and runs fn, publishing the result as an event.
func (m *Manager) run(name, op string, fn func(g *game.Game) error) error {
	g, err := m.find(name)
	if err == nil {
		err = fn(g)
		if gameerr.Is(err, gameerr.Stale) {
			g.RefreshLocal(m.GamesFolder())
		}
	}
	if err != nil {
		m.fail(name, op, err)
		return err
	}
	m.publish(Event{Kind: GameChanged, Game: name, Op: op})
	return nil
}

// CheckStatus resolves the latest release of one game.
func (m *Manager) CheckStatus(ctx context.Context, name string) error {
	return m.run(name, "check", func(g *game.Game) error {
		if err := g.CheckStatus(ctx, m.env()); err != nil {
			return err
		}
		m.cacheRelease(ctx, g.Snapshot())
		return nil
	})
}

// PerformAction installs, updates or launches a game. See game.Game.PerformAction.
func (m *Manager) PerformAction(ctx context.Context, name string) (game.Outcome, error) {
	var out game.Outcome
	err := m.run(name, "play", func(g *game.Game) error {
		var err error
		out, err = g.PerformAction(ctx, m.env())
		if err != nil {
			return err
		}
		if s := g.Snapshot(); s.Checked {
			m.cacheRelease(ctx, s)
		}
		return nil
	})
	return out, err
}

// Delete removes an installed game from disk.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.run(name, "delete", func(g *game.Game) error {
		return g.Delete(ctx, m.env())
	})
}

// SelectDownload picks the asset the next install of name uses.
func (m *Manager) SelectDownload(name, asset string) error {
	return m.run(name, "select-download", func(g *game.Game) error {
		return g.SelectDownload(asset)
	})
}

// SelectExecutable persists the executable launched for name.
func (m *Manager) SelectExecutable(name, path string) error {
	return m.run(name, "select-executable", func(g *game.Game) error {
		return g.SelectExecutable(m.GamesFolder(), path)
	})
}

// ClearSelectedExecutable forgets the executable choice of name.
func (m *Manager) ClearSelectedExecutable(name string) error {
	return m.run(name, "clear-executable", func(g *game.Game) error {
		return g.ClearSelectedExecutable(m.GamesFolder())
	})
}

// UpdateGamesFolder moves the library root to path, creating it when missing. Every
// game's derived state is invalidated and its install state re-read from the new
// folder; release data needs a new check.
func (m *Manager) UpdateGamesFolder(path string) error {
	path = strings.TrimSpace(path)
	if err := validation.ValidateNonEmptyString("games folder", path); err != nil {
		return gameerr.New(gameerr.Validation, "", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return gameerr.New(gameerr.Validation, "invalid games folder", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		err = gameerr.New(gameerr.Filesystem, "create games folder", err)
		m.fail("", "games-folder", err)
		return err
	}

	m.mu.Lock()
	old := m.gamesFolder
	m.gamesFolder = abs
	m.settings.GamesPath = abs
	games := append([]*game.Game(nil), m.games...)
	m.mu.Unlock()

	for _, g := range games {
		g.Invalidate()
		g.RefreshLocal(abs)
	}
	m.rewatch(abs)
	log.Info().Str("from", old).Str("to", abs).Msg("Games folder changed")
	m.publish(Event{Kind: LibraryReloaded, Op: "games-folder"})
	return nil
}

// LatestPlayedInstalledGame returns the visible installed game played most recently.
func (m *Manager) LatestPlayedInstalledGame() (game.Snapshot, bool) {
	var best game.Snapshot
	found := false
	for _, s := range m.Games() {
		if !s.IsInstalled() || s.LastPlayed.IsZero() {
			continue
		}
		if !found || s.LastPlayed.After(best.LastPlayed) {
			best = s
			found = true
		}
	}
	return best, found
}

// Close stops the folder watcher and ends all subscriptions.
func (m *Manager) Close() error {
	m.stopWatch(nil)
	m.events.close()
	return nil
}
