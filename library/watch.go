package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
)

// WatchDebounce is how long a game folder has to stay quiet before its install state
// is re-read.
var WatchDebounce = 500 * time.Millisecond

// Watch re-reads the install state of games whose folders change outside the engine,
// for example when a build is copied in by hand. It returns once the watcher runs; the
// watcher stops when ctx is done or the manager is closed.
func (m *Manager) Watch(ctx context.Context) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher != nil {
		return gameerr.New(gameerr.ConcurrentAction, "games folder is already watched", nil)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return gameerr.New(gameerr.Filesystem, "create watcher", err)
	}
	folder := m.GamesFolder()
	if err := os.MkdirAll(folder, 0o755); err != nil {
		_ = w.Close()
		return gameerr.New(gameerr.Filesystem, "create games folder", err)
	}
	if err := addWatches(w, folder); err != nil {
		_ = w.Close()
		return gameerr.New(gameerr.Filesystem, "watch games folder", err)
	}
	m.watcher = w
	go m.watchLoop(ctx, w)
	log.Info().Str("folder", folder).Msg("Watching games folder")
	return nil
}

// addWatches watches folder and each game folder directly below it.
func addWatches(w *fsnotify.Watcher, folder string) error {
	if err := w.Add(folder); err != nil {
		return err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := w.Add(filepath.Join(folder, e.Name())); err != nil {
				log.Warn().Err(err).Str("folder", e.Name()).Msg("Failed to watch game folder")
			}
		}
	}
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			m.stopWatch(w)
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			m.handleWatchEvent(w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Games folder watcher error")
		}
	}
}

func (m *Manager) handleWatchEvent(w *fsnotify.Watcher, event fsnotify.Event) {
	root := m.GamesFolder()
	rel, err := filepath.Rel(root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	folderName := strings.Split(filepath.ToSlash(rel), "/")[0]
	if strings.HasPrefix(folderName, ".") {
		return
	}
	log.Debug().Str("event", event.Op.String()).Str("path", event.Name).Msg("Games folder event")

	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == root {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			_ = w.Add(event.Name)
		}
	}
	m.debounce(folderName, func() { m.refreshFolder(folderName) })
}

func (m *Manager) debounce(key string, fn func()) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if t, ok := m.debouncers[key]; ok {
		t.Stop()
	}
	m.debouncers[key] = time.AfterFunc(WatchDebounce, fn)
}

// refreshFolder re-reads the local state of the game installed in folderName.
func (m *Manager) refreshFolder(folderName string) {
	m.watchMu.Lock()
	delete(m.debouncers, folderName)
	m.watchMu.Unlock()

	for _, g := range m.gameList() {
		if g.FolderName() != folderName {
			continue
		}
		g.RefreshLocal(m.GamesFolder())
		m.publish(Event{Kind: GameChanged, Game: g.Name(), Op: "watch"})
		return
	}
}

// rewatch points a running watcher at a new games folder.
func (m *Manager) rewatch(folder string) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher == nil {
		return
	}
	for _, p := range m.watcher.WatchList() {
		_ = m.watcher.Remove(p)
	}
	if err := addWatches(m.watcher, folder); err != nil {
		log.Error().Err(err).Str("folder", folder).Msg("Failed to watch new games folder")
	}
}

// stopWatch closes w, or the current watcher when w is nil.
func (m *Manager) stopWatch(w *fsnotify.Watcher) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watcher == nil || (w != nil && m.watcher != w) {
		return
	}
	if err := m.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close watcher")
	}
	m.watcher = nil
	for k, t := range m.debouncers {
		t.Stop()
		delete(m.debouncers, k)
	}
}
