package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/recompkit/rkl/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
)

//go:embed games.jsonc
var builtin []byte

// Entry describes one game the launcher can track.
type Entry struct {
	Name         string `json:"name"`
	Repository   string `json:"repository"`
	FolderName   string `json:"folderName"`
	IconURL      string `json:"iconUrl,omitempty"`
	Experimental bool   `json:"experimental,omitempty"`
	Custom       bool   `json:"-"`
}

type file struct {
	Games []Entry `json:"games"`
}

// Validate checks the fields the engine relies on.
func (e Entry) Validate() error {
	if err := validation.ValidateNonEmptyString("name", e.Name); err != nil {
		return err
	}
	if err := validation.ValidateRepository(e.Repository); err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if err := validation.ValidateFolderName(e.FolderName); err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	return nil
}

// Parse decodes a catalog document. Comments and trailing commas are allowed.
func Parse(data []byte) ([]Entry, error) {
	var f file
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, e := range f.Games {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Games, nil
}

// Builtin returns the catalog shipped with the binary.
func Builtin() ([]Entry, error) {
	return Parse(builtin)
}

// LoadCustom reads the user's custom games file. A missing file yields no entries.
func LoadCustom(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range entries {
		entries[i].Custom = true
	}
	return entries, nil
}

// Load merges the built-in catalog with the custom games file. Custom entries whose
// name or folder collides with an earlier entry are skipped.
func Load(customPath string) ([]Entry, error) {
	entries, err := Builtin()
	if err != nil {
		return nil, err
	}
	custom, err := LoadCustom(customPath)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(entries)+len(custom))
	folders := make(map[string]bool, len(entries)+len(custom))
	for _, e := range entries {
		names[e.Name] = true
		folders[e.FolderName] = true
	}
	for _, e := range custom {
		if names[e.Name] || folders[e.FolderName] {
			log.Warn().Str("game", e.Name).Str("folder", e.FolderName).Msg("Skipping duplicate custom game")
			continue
		}
		names[e.Name] = true
		folders[e.FolderName] = true
		entries = append(entries, e)
	}
	return entries, nil
}
