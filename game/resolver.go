package game

import (
	"context"
	"sort"

	"github.com/recompkit/rkl/client"
)

// ReleaseSource returns the latest release of a repository. *client.Client implements it.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, repository string) (*client.Release, error)
}

// Resolution is the outcome of a successful release query.
type Resolution struct {
	Version   string
	Changelog string
	Assets    []client.Asset // platform matches first
}

// Resolve queries the latest release of repository and ranks its assets for platform.
// Errors from src are returned unchanged.
func Resolve(ctx context.Context, src ReleaseSource, repository string, platform Platform) (*Resolution, error) {
	rel, err := src.LatestRelease(ctx, repository)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Version:   rel.TagName,
		Changelog: rel.Body,
		Assets:    RankAssets(rel.Assets, platform),
	}, nil
}

// RankAssets returns a copy of assets with those matching platform first. Relative
// order inside each group is kept.
func RankAssets(assets []client.Asset, platform Platform) []client.Asset {
	ranked := make([]client.Asset, len(assets))
	copy(ranked, assets)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Matches(ranked[i].Name, platform) && !Matches(ranked[j].Name, platform)
	})
	return ranked
}

// DeriveStatus classifies a game from its local install and the latest known release.
// Versions compare by exact string equality. An installed game whose latest version is
// not known yet counts as Installed.
func DeriveStatus(installed bool, installedVersion, latestVersion string) Status {
	switch {
	case !installed:
		return NotInstalled
	case latestVersion == "" || installedVersion == latestVersion:
		return Installed
	default:
		return UpdateAvailable
	}
}
