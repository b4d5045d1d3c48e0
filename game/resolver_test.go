package game

import (
	"context"
	"testing"

	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(assets []client.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Name
	}
	return out
}

func TestRankAssets_StablePartition(t *testing.T) {
	assets := []client.Asset{
		{Name: "Game-Linux.AppImage"},
		{Name: "Game-Windows.zip"},
		{Name: "Game-macOS.zip"},
		{Name: "Game-Windows-Debug.zip"},
		{Name: "Source.tar.gz"},
	}
	ranked := RankAssets(assets, Windows)
	assert.Equal(t, []string{
		"Game-Windows.zip", "Game-Windows-Debug.zip",
		"Game-Linux.AppImage", "Game-macOS.zip", "Source.tar.gz",
	}, names(ranked))
	assert.Equal(t, "Game-Linux.AppImage", assets[0].Name, "input must not be reordered")
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, NotInstalled, DeriveStatus(false, "", "v1"))
	assert.Equal(t, NotInstalled, DeriveStatus(false, "v1", "v1"))
	assert.Equal(t, Installed, DeriveStatus(true, "v1", "v1"))
	assert.Equal(t, UpdateAvailable, DeriveStatus(true, "v1", "v2"))
	assert.Equal(t, UpdateAvailable, DeriveStatus(true, "", "v2"))
	assert.Equal(t, UpdateAvailable, DeriveStatus(true, "1.0", "v1.0"), "comparison is exact")
	assert.Equal(t, Installed, DeriveStatus(true, "v1", ""))
}

func TestResolve(t *testing.T) {
	src := &fakeReleases{
		releases: map[string]*client.Release{
			"o/a": {TagName: "v3", Body: "changes", Assets: []client.Asset{{Name: "a-linux.tar.gz"}, {Name: "a-win.zip"}}},
		},
		errs: map[string]error{"o/down": gameerr.New(gameerr.Network, "unreachable", nil)},
	}

	res, err := Resolve(context.Background(), src, "o/a", Windows)
	require.NoError(t, err)
	assert.Equal(t, "v3", res.Version)
	assert.Equal(t, "changes", res.Changelog)
	assert.Equal(t, []string{"a-win.zip", "a-linux.tar.gz"}, names(res.Assets))

	_, err = Resolve(context.Background(), src, "o/down", Windows)
	assert.True(t, gameerr.Is(err, gameerr.Network))
	_, err = Resolve(context.Background(), src, "o/missing", Windows)
	assert.True(t, gameerr.Is(err, gameerr.NotFound))
}
