package game

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// Launcher starts a game executable without waiting for it to exit.
type Launcher interface {
	Launch(executable string) (pid int, err error)
}

// ProcessLauncher runs executables as detached child processes.
type ProcessLauncher struct{}

// Launch starts executable with its own directory as working directory. macOS bundles
// are opened through open(1).
func (ProcessLauncher) Launch(executable string) (int, error) {
	cmd := launchCommand(executable, runtime.GOOS)
	cmd.Dir = filepath.Dir(executable)
	if runtime.GOOS != "windows" && !strings.HasSuffix(strings.ToLower(executable), ".app") {
		if err := ensureExecutable(executable); err != nil {
			return 0, err
		}
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", filepath.Base(executable), err)
	}
	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Int("pid", pid).Msg("Game process exited with error")
			return
		}
		log.Debug().Int("pid", pid).Msg("Game process exited")
	}()
	return pid, nil
}

func launchCommand(executable, goos string) *exec.Cmd {
	if goos == "darwin" && strings.HasSuffix(strings.ToLower(executable), ".app") {
		return exec.Command("open", "-a", executable)
	}
	return exec.Command(executable)
}

// ensureExecutable adds the user execute bit when an archive dropped it.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Mode().Perm()&0o100 != 0 {
		return nil
	}
	return os.Chmod(path, info.Mode().Perm()|0o755)
}
