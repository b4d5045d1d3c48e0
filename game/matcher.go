package game

import (
	"strings"
	"unicode"
)

// Icon hints which platform badge to show next to an asset.
type Icon string

const (
	IconNone    Icon = "none"
	IconWindows Icon = "windows"
	IconMacOS   Icon = "macos"
	IconLinux   Icon = "linux"
	IconFlatpak Icon = "flatpak"
)

var archAliases = strings.NewReplacer(
	"x86_64", "x64",
	"x86-64", "x64",
	"amd64", "x64",
	"aarch64", "arm64",
)

var (
	windowsTokens = []string{"win", "windows", "win32", "win64"}
	macTokens     = []string{"mac", "macos", "osx", "darwin", "apple", "universal"}
	linuxTokens   = []string{"linux", "appimage", "flatpak", "steamdeck", "deck"}

	windowsExts = []string{".exe", ".msi"}
	macExts     = []string{".dmg", ".pkg"}
	linuxExts   = []string{".appimage", ".flatpak", ".deb", ".rpm"}
)

type assetName struct {
	lower  string
	tokens map[string]bool
}

func parseAssetName(name string) assetName {
	lower := strings.ToLower(name)
	normalized := archAliases.Replace(lower)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		tokens[f] = true
	}
	return assetName{lower: lower, tokens: tokens}
}

func (a assetName) any(tokens []string, exts []string) bool {
	for _, t := range tokens {
		if a.tokens[t] {
			return true
		}
	}
	for _, e := range exts {
		if strings.HasSuffix(a.lower, e) {
			return true
		}
	}
	return false
}

func (a assetName) isWindows() bool { return a.any(windowsTokens, windowsExts) }
func (a assetName) isMac() bool     { return a.any(macTokens, macExts) }
func (a assetName) isLinux() bool   { return a.any(linuxTokens, linuxExts) }
func (a assetName) isARM() bool     { return a.tokens["arm64"] || a.tokens["arm"] }

// Matches reports whether assetName is a build for platform. Auto is resolved to the
// running platform first; Unknown never matches.
func Matches(assetName string, platform Platform) bool {
	a := parseAssetName(assetName)
	switch platform.Resolve() {
	case Windows:
		return a.isWindows() && !a.tokens["arm64"]
	case MacOS:
		return a.isMac()
	case LinuxX64:
		return a.isLinux() && !a.isARM()
	case LinuxARM64:
		return a.isLinux() && a.isARM()
	default:
		return false
	}
}

// IconFor picks the platform badge for an asset name.
func IconFor(assetName string) Icon {
	a := parseAssetName(assetName)
	switch {
	case a.tokens["flatpak"] || strings.HasSuffix(a.lower, ".flatpak"):
		return IconFlatpak
	case a.isWindows():
		return IconWindows
	case a.isMac():
		return IconMacOS
	case a.isLinux():
		return IconLinux
	default:
		return IconNone
	}
}
