package game

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/recompkit/rkl/pkg/operations"
)

// MaxScanDepth bounds how deep below the install folder executables are searched.
const MaxScanDepth = 3

var windowsExcludedPrefixes = []string{"unins", "vc_redist", "dxsetup"}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// FindExecutables lists launchable files for platform below folder, in lexical order.
func FindExecutables(folder string, platform Platform) ([]string, error) {
	var filter operations.FilterFunc
	switch platform.Resolve() {
	case Windows:
		filter = isWindowsExecutable
	case MacOS:
		filter = isMacBundle
	case LinuxX64, LinuxARM64:
		filter = isLinuxExecutable
	default:
		return nil, nil
	}

	matches, err := operations.FindFiles(folder, MaxScanDepth, operations.DefaultScanExclusions, filter)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	return paths, nil
}

func isWindowsExecutable(_ string, d fs.DirEntry) bool {
	if d.IsDir() {
		return false
	}
	name := strings.ToLower(d.Name())
	if !strings.HasSuffix(name, ".exe") {
		return false
	}
	for _, p := range windowsExcludedPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return !strings.Contains(name, "crashhandler")
}

func isMacBundle(_ string, d fs.DirEntry) bool {
	return d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".app")
}

func isLinuxExecutable(path string, d fs.DirEntry) bool {
	if !d.Type().IsRegular() {
		return false
	}
	name := strings.ToLower(d.Name())
	if strings.HasSuffix(name, ".appimage") || strings.HasSuffix(name, ".x86_64") || strings.HasSuffix(name, ".sh") {
		return true
	}
	if strings.Contains(name, ".so") {
		return false
	}
	info, err := d.Info()
	if err != nil || info.Mode().Perm()&0o111 == 0 {
		return false
	}
	return hasELFHeader(path)
}

func hasELFHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, elfMagic)
}
