package library

import (
	"context"
	"sort"
	"strings"

	"github.com/recompkit/rkl/game"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
)

// SortMode orders the game list.
type SortMode string

const (
	SortName         SortMode = "Name"
	SortNameDesc     SortMode = "NameDesc"
	SortInstalled    SortMode = "Installed"
	SortNotInstalled SortMode = "NotInstalled"
	SortLastPlayed   SortMode = "LastPlayed"
	SortExperimental SortMode = "Experimental"
	SortCustom       SortMode = "Custom"
)

var sortModes = []SortMode{SortName, SortNameDesc, SortInstalled, SortNotInstalled, SortLastPlayed, SortExperimental, SortCustom}

// SortModes lists every supported mode.
func SortModes() []SortMode { return append([]SortMode(nil), sortModes...) }

// ParseSortMode matches s case-insensitively. Unknown modes sort by name.
func ParseSortMode(s string) SortMode {
	for _, m := range sortModes {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m
		}
	}
	return SortName
}

// Sort reorders the games. Ties are broken by name.
func (m *Manager) Sort(mode SortMode) {
	m.sortGames(mode)
	m.mu.Lock()
	m.settings.SortBy = string(mode)
	m.mu.Unlock()
	m.publish(Event{Kind: LibraryReloaded, Op: "sort"})
}

// sortGames reorders m.games while holding the manager lock.
func (m *Manager) sortGames(mode SortMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	games := append([]*game.Game(nil), m.games...)
	snaps := make(map[*game.Game]game.Snapshot, len(games))
	for _, g := range games {
		snaps[g] = g.Snapshot()
	}

	sort.SliceStable(games, func(i, j int) bool {
		a, b := snaps[games[i]], snaps[games[j]]
		if c := compareBy(mode, a, b); c != 0 {
			return c < 0
		}
		if mode == SortNameDesc {
			return false
		}
		return a.Name < b.Name
	})
	m.games = games
}

// compareBy returns a negative number when a sorts before b under mode.
func compareBy(mode SortMode, a, b game.Snapshot) int {
	switch mode {
	case SortNameDesc:
		return strings.Compare(b.Name, a.Name)
	case SortInstalled:
		return trueFirst(a.IsInstalled(), b.IsInstalled())
	case SortNotInstalled:
		return trueFirst(!a.IsInstalled(), !b.IsInstalled())
	case SortLastPlayed:
		switch {
		case a.LastPlayed.After(b.LastPlayed):
			return -1
		case b.LastPlayed.After(a.LastPlayed):
			return 1
		}
		return 0
	case SortExperimental:
		return trueFirst(a.Experimental, b.Experimental)
	case SortCustom:
		return trueFirst(a.Custom, b.Custom)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

func trueFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// updateHidden applies mutate to a copy of the hidden set and stores the result in
// one transaction. Games only see the new set after it was stored.
func (m *Manager) updateHidden(ctx context.Context, op string, mutate func(set map[string]bool, games []game.Snapshot)) error {
	m.hiddenMu.Lock()
	defer m.hiddenMu.Unlock()

	m.mu.RLock()
	set := make(map[string]bool, len(m.hidden))
	for n := range m.hidden {
		set[n] = true
	}
	games := append([]*game.Game(nil), m.games...)
	m.mu.RUnlock()

	snaps := make([]game.Snapshot, len(games))
	for i, g := range games {
		snaps[i] = g.Snapshot()
	}
	mutate(set, snaps)

	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	if err := m.deps.Hidden.Replace(ctx, names); err != nil {
		err = gameerr.New(gameerr.Filesystem, "save hidden games", err)
		m.fail("", op, err)
		return err
	}

	m.mu.Lock()
	m.hidden = set
	m.mu.Unlock()
	for _, g := range games {
		g.SetHidden(set[g.Name()])
	}
	log.Debug().Str("op", op).Int("hidden", len(names)).Msg("Hidden games updated")
	m.publish(Event{Kind: LibraryReloaded, Op: op})
	return nil
}

// Hidden returns the hidden game names in order.
func (m *Manager) Hidden() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.hidden))
	for n := range m.hidden {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) Hide(ctx context.Context, name string) error {
	if _, err := m.find(name); err != nil {
		m.fail(name, "hide", err)
		return err
	}
	return m.updateHidden(ctx, "hide", func(set map[string]bool, _ []game.Snapshot) {
		set[name] = true
	})
}

func (m *Manager) Unhide(ctx context.Context, name string) error {
	return m.updateHidden(ctx, "unhide", func(set map[string]bool, _ []game.Snapshot) {
		delete(set, name)
	})
}

func (m *Manager) UnhideAll(ctx context.Context) error {
	return m.updateHidden(ctx, "unhide-all", func(set map[string]bool, _ []game.Snapshot) {
		for n := range set {
			delete(set, n)
		}
	})
}

// HideNonInstalled hides every game that has no build on disk.
func (m *Manager) HideNonInstalled(ctx context.Context) error {
	return m.updateHidden(ctx, "hide-non-installed", hideWhere(func(s game.Snapshot) bool {
		return !s.IsInstalled()
	}))
}

// HideNonStable hides the experimental games.
func (m *Manager) HideNonStable(ctx context.Context) error {
	return m.updateHidden(ctx, "hide-non-stable", hideWhere(func(s game.Snapshot) bool {
		return s.Experimental
	}))
}

// OnlyShowExperimental hides every stable game and turns experimental games on.
func (m *Manager) OnlyShowExperimental(ctx context.Context) error {
	if err := m.updateHidden(ctx, "only-experimental", hideWhere(func(s game.Snapshot) bool {
		return !s.Experimental
	})); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings.ShowExperimental = true
	m.mu.Unlock()
	return nil
}

// OnlyShowCustom hides every catalog game that is not user defined.
func (m *Manager) OnlyShowCustom(ctx context.Context) error {
	if err := m.updateHidden(ctx, "only-custom", hideWhere(func(s game.Snapshot) bool {
		return !s.Custom
	})); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings.ShowCustom = true
	m.mu.Unlock()
	return nil
}

func hideWhere(pred func(game.Snapshot) bool) func(map[string]bool, []game.Snapshot) {
	return func(set map[string]bool, games []game.Snapshot) {
		for _, s := range games {
			if pred(s) {
				set[s.Name] = true
			}
		}
	}
}
