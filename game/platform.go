package game

import (
	"runtime"
	"strings"
)

// Platform identifies the build flavour a game asset targets.
type Platform int

const (
	Unknown Platform = iota
	Auto
	Windows
	MacOS
	LinuxX64
	LinuxARM64
)

func (p Platform) String() string {
	switch p {
	case Auto:
		return "auto"
	case Windows:
		return "windows"
	case MacOS:
		return "macos"
	case LinuxX64:
		return "linux-x64"
	case LinuxARM64:
		return "linux-arm64"
	default:
		return "unknown"
	}
}

// ParsePlatform accepts the settings spelling ("linux-x64") as well as the display
// spelling ("LinuxX64"). Anything else yields Unknown.
func ParsePlatform(s string) Platform {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "auto", "":
		return Auto
	case "windows", "win":
		return Windows
	case "macos", "mac", "osx", "darwin":
		return MacOS
	case "linuxx64", "linux", "linuxamd64":
		return LinuxX64
	case "linuxarm64", "linuxaarch64":
		return LinuxARM64
	default:
		return Unknown
	}
}

// Resolve turns Auto into the platform of the running process.
func (p Platform) Resolve() Platform {
	if p == Auto {
		return Detect(runtime.GOOS, runtime.GOARCH)
	}
	return p
}

// Detect maps a GOOS/GOARCH pair onto a Platform.
func Detect(goos, goarch string) Platform {
	switch goos {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	case "linux", "freebsd":
		if goarch == "arm64" {
			return LinuxARM64
		}
		return LinuxX64
	default:
		return Unknown
	}
}
