package library

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/db"
	"github.com/recompkit/rkl/game"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/recompkit/rkl/pkg/pool"
	"github.com/rs/zerolog/log"
)

// cacheRelease remembers the release data of a successfully checked game.
func (m *Manager) cacheRelease(ctx context.Context, s game.Snapshot) {
	if s.LatestVersion == "" {
		return
	}
	assets, err := json.Marshal(s.AvailableDownloads)
	if err != nil {
		log.Warn().Err(err).Str("game", s.Name).Msg("Failed to encode assets for cache")
		return
	}
	rc := &db.ReleaseCache{
		Repository: s.Repository,
		Tag:        s.LatestVersion,
		Body:       s.Changelog,
		Assets:     string(assets),
		FetchedAt:  m.deps.Now(),
	}
	if err := m.deps.ReleaseCache.Put(ctx, rc); err != nil {
		log.Warn().Err(err).Str("game", s.Name).Msg("Failed to cache release")
	}
}

func (m *Manager) cachedResolution(ctx context.Context, repository string) *game.Resolution {
	res, _, err := m.readCache(ctx, repository)
	if err != nil {
		log.Debug().Err(err).Str("repository", repository).Msg("No usable cached release")
		return nil
	}
	return res
}

func (m *Manager) readCache(ctx context.Context, repository string) (*game.Resolution, time.Time, error) {
	rc, err := m.deps.ReleaseCache.Get(ctx, repository)
	if err != nil {
		return nil, time.Time{}, gameerr.New(gameerr.Filesystem, "read release cache", err)
	}
	if rc == nil {
		return nil, time.Time{}, gameerr.Newf(gameerr.NotFound, "no cached release for %s", repository)
	}
	var assets []client.Asset
	if rc.Assets != "" {
		if err := json.Unmarshal([]byte(rc.Assets), &assets); err != nil {
			return nil, time.Time{}, gameerr.New(gameerr.Malformed, "decode cached assets", err)
		}
	}
	return &game.Resolution{
		Version:   rc.Tag,
		Changelog: rc.Body,
		Assets:    game.RankAssets(assets, m.platform),
	}, rc.FetchedAt, nil
}

// CachedRelease returns the last release resolved for name and when it was fetched.
func (m *Manager) CachedRelease(ctx context.Context, name string) (*game.Resolution, time.Time, error) {
	g, err := m.find(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	return m.readCache(ctx, g.Repository())
}

// Changelog returns the release notes of the latest release of name. With offline set
// only the release cache is consulted.
func (m *Manager) Changelog(ctx context.Context, name string, offline bool) (string, error) {
	if offline {
		res, _, err := m.CachedRelease(ctx, name)
		if err != nil {
			return "", err
		}
		return res.Changelog, nil
	}
	if err := m.CheckStatus(ctx, name); err != nil {
		return "", err
	}
	s, err := m.Game(name)
	if err != nil {
		return "", err
	}
	return s.Changelog, nil
}

// SetCustomIcon copies src into the cache folder and shows it for name.
func (m *Manager) SetCustomIcon(ctx context.Context, name, src string) (string, error) {
	var dest string
	err := m.run(name, "icon-set", func(g *game.Game) error {
		var err error
		if dest, err = g.SetCustomIcon(src, m.CacheFolder()); err != nil {
			return err
		}
		if err := m.deps.Icons.Put(ctx, name, dest); err != nil {
			return gameerr.New(gameerr.Filesystem, "save custom icon", err)
		}
		return nil
	})
	return dest, err
}

// RemoveCustomIcon goes back to the remote icon for name.
func (m *Manager) RemoveCustomIcon(ctx context.Context, name string) error {
	return m.run(name, "icon-remove", func(g *game.Game) error {
		if err := g.RemoveCustomIcon(); err != nil {
			return err
		}
		if err := m.deps.Icons.Delete(ctx, name); err != nil {
			return gameerr.New(gameerr.Filesystem, "forget custom icon", err)
		}
		return nil
	})
}

// ClearIconCache deletes every downloaded remote icon.
func (m *Manager) ClearIconCache() error {
	if err := m.icons.Clear(); err != nil {
		m.fail("", "icon-clear", err)
		return err
	}
	m.publish(Event{Kind: LibraryReloaded, Op: "icon-clear"})
	return nil
}

// IconPath returns a local file for the icon of name: the custom icon when set,
// otherwise the cached remote icon, downloading it when needed.
func (m *Manager) IconPath(ctx context.Context, name string) (string, error) {
	s, err := m.Game(name)
	if err != nil {
		return "", err
	}
	if s.CustomIconPath != "" {
		return s.CustomIconPath, nil
	}
	if s.IconURL == "" {
		return "", gameerr.Newf(gameerr.NotFound, "%s has no icon", name)
	}
	return m.icons.Fetch(ctx, s.IconURL)
}

// IconReport lists the outcome of CacheIcons.
type IconReport struct {
	Paths  map[string]string
	Failed map[string]error
}

// CacheIcons downloads the remote icons of all visible games that do not use a custom
// icon.
func (m *Manager) CacheIcons(ctx context.Context) IconReport {
	report := IconReport{Paths: map[string]string{}, Failed: map[string]error{}}
	var todo []game.Snapshot
	for _, s := range m.Games() {
		if s.CustomIconPath == "" && s.IconURL != "" {
			todo = append(todo, s)
		}
	}

	var mu sync.Mutex
	pool.Run(ctx, todo, m.Settings().RefreshWorkers, func(ctx context.Context, s game.Snapshot) error {
		p, err := m.icons.Fetch(ctx, s.IconURL)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed[s.Name] = err
			return err
		}
		report.Paths[s.Name] = p
		return nil
	})
	for name, err := range report.Failed {
		log.Warn().Err(err).Str("game", name).Msg("Icon download failed")
	}
	return report
}
