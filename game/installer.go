package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/pkg/archive"
	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/recompkit/rkl/pkg/hasher"
	"github.com/rs/zerolog/log"
)

// TempFolderName is the scratch folder for downloads, created inside the games folder
// so the final rename never crosses filesystems.
const TempFolderName = ".rkl-tmp"

// Downloader fetches url into dest. *client.Client implements it.
type Downloader interface {
	Download(ctx context.Context, url, dest string, progress io.Writer) (int64, error)
}

// Installer downloads a release asset and swaps it into a game's folder.
type Installer struct {
	Downloader Downloader
	Progress   io.Writer                          // optional progress output
	Extract    func(src, name, dest string) error // defaults to archive.Extract
}

// NewInstaller returns an Installer that unpacks with archive.Extract.
func NewInstaller(d Downloader, progress io.Writer) *Installer {
	return &Installer{Downloader: d, Progress: progress, Extract: archive.Extract}
}

// Install places asset into gamesFolder/folderName and records version in it. The old
// folder is replaced only after the new contents are fully extracted; on any error the
// previous install is left as it was.
func (in *Installer) Install(ctx context.Context, gamesFolder, folderName string, asset client.Asset, version string) error {
	if err := os.MkdirAll(gamesFolder, 0o755); err != nil {
		return gameerr.New(gameerr.Filesystem, "create games folder", err)
	}
	sweepLeftovers(gamesFolder, folderName)

	tmpDir := filepath.Join(gamesFolder, TempFolderName, folderName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return gameerr.New(gameerr.Filesystem, "create temp folder", err)
	}
	defer func() {
		// only succeed when empty
		_ = os.Remove(tmpDir)
		_ = os.Remove(filepath.Dir(tmpDir))
	}()

	downloadPath := filepath.Join(tmpDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(asset.Name)))
	defer os.Remove(downloadPath)

	log.Info().Str("asset", asset.Name).Str("version", version).Msg("Downloading asset")
	if _, err := in.Downloader.Download(ctx, asset.URL, downloadPath, in.Progress); err != nil {
		return err
	}
	if asset.Digest != "" {
		if err := hasher.VerifyFile(downloadPath, asset.Digest); err != nil {
			return gameerr.New(gameerr.Malformed, "downloaded file failed verification", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	staging, err := os.MkdirTemp(gamesFolder, "."+folderName+".staging-*")
	if err != nil {
		return gameerr.New(gameerr.Filesystem, "create staging folder", err)
	}
	defer os.RemoveAll(staging)

	extract := in.Extract
	if extract == nil {
		extract = archive.Extract
	}
	if err := extract(downloadPath, asset.Name, staging); err != nil {
		return gameerr.New(gameerr.Filesystem, fmt.Sprintf("extract %s", asset.Name), err)
	}

	target := filepath.Join(gamesFolder, folderName)
	carryMarkers(target, staging)
	if err := WriteVersion(staging, version); err != nil {
		return gameerr.New(gameerr.Filesystem, "write version marker", err)
	}
	if err := swapFolder(staging, target); err != nil {
		return gameerr.New(gameerr.Filesystem, "replace game folder", err)
	}
	log.Info().Str("folder", target).Str("version", version).Msg("Install finished")
	return nil
}

// sweepLeftovers cleans up after an install of folderName that was killed before it
// could clean up itself. A backup with no game folder next to it is the previous
// install and is moved back into place.
func sweepLeftovers(gamesFolder, folderName string) {
	prefix := filepath.Join(gamesFolder, "."+folderName)
	staging, _ := filepath.Glob(prefix + ".staging-*")
	for _, p := range staging {
		log.Warn().Str("folder", p).Msg("Removing staging folder of an interrupted install")
		_ = os.RemoveAll(p)
	}
	_ = os.RemoveAll(filepath.Join(gamesFolder, TempFolderName, folderName))

	backups, _ := filepath.Glob(prefix + ".backup-*")
	if len(backups) == 0 {
		return
	}
	sort.Strings(backups)
	target := filepath.Join(gamesFolder, folderName)
	if _, err := os.Lstat(target); errors.Is(err, os.ErrNotExist) {
		newest := backups[len(backups)-1]
		if err := os.Rename(newest, target); err != nil {
			log.Error().Err(err).Str("backup", newest).Msg("Failed to restore previous install")
		} else {
			log.Warn().Str("folder", target).Msg("Restored previous install after an interrupted update")
			backups = backups[:len(backups)-1]
		}
	}
	for _, b := range backups {
		_ = os.RemoveAll(b)
	}
}

// carryMarkers keeps play history across updates. The executable selection only moves
// over when the file it names still exists in the new build.
func carryMarkers(oldFolder, newFolder string) {
	if t, ok := ReadLastPlayed(oldFolder); ok {
		if err := WriteLastPlayed(newFolder, t); err != nil {
			log.Warn().Err(err).Msg("Failed to carry over last played marker")
		}
	}
	sel, err := ReadSelectedExecutable(oldFolder)
	if err != nil || sel == "" {
		return
	}
	rel, err := filepath.Rel(oldFolder, sel)
	if err != nil {
		return
	}
	if exists(filepath.Join(newFolder, rel)) {
		if err := WriteSelectedExecutable(newFolder, rel); err != nil {
			log.Warn().Err(err).Msg("Failed to carry over executable selection")
		}
	}
}

// swapFolder moves staging into target. An existing target is parked under a backup
// name and restored if the move fails.
func swapFolder(staging, target string) error {
	var backup string
	if _, err := os.Lstat(target); err == nil {
		backup = fmt.Sprintf("%s.backup-%d", filepath.Join(filepath.Dir(target), "."+filepath.Base(target)), time.Now().UnixNano())
		if err := os.Rename(target, backup); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(staging, target); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, target); rerr != nil {
				log.Error().Err(rerr).Str("backup", backup).Msg("Failed to restore previous install")
			}
		}
		return err
	}
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			log.Warn().Err(err).Str("backup", backup).Msg("Failed to remove previous install")
		}
	}
	return nil
}
