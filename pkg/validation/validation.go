package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	MinWorkers = 1
	MaxWorkers = 20
)

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateRepository checks for the "owner/name" form used by release queries.
func ValidateRepository(repo string) error {
	if !repositoryPattern.MatchString(repo) {
		return fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return nil
}

// ValidateFolderName rejects install folder names that could escape the games folder.
func ValidateFolderName(name string) error {
	if err := ValidateNonEmptyString("folder name", name); err != nil {
		return err
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return fmt.Errorf("invalid folder name: %s", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("folder name cannot start with a dot: %s", name)
	}
	return nil
}

func ValidatePlatform(platform string) error {
	validPlatforms := map[string]bool{
		"auto":        true,
		"windows":     true,
		"macos":       true,
		"linux-x64":   true,
		"linux-arm64": true,
	}
	if !validPlatforms[strings.ToLower(platform)] {
		return fmt.Errorf("invalid platform: %s (must be one of: auto, windows, macos, linux-x64, linux-arm64)", platform)
	}
	return nil
}

func ValidateSortMode(mode string) error {
	switch mode {
	case "Name", "NameDesc", "Installed", "NotInstalled", "LastPlayed", "Experimental", "Custom":
		return nil
	}
	return fmt.Errorf("invalid sort mode: %s", mode)
}
