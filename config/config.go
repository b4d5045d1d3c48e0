package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/recompkit/rkl/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings holds the user's launcher preferences.
type Settings struct {
	Platform          string `mapstructure:"platform" yaml:"platform"`
	GamesPath         string `mapstructure:"games_path" yaml:"games_path"`
	CachePath         string `mapstructure:"cache_path" yaml:"cache_path"`
	GitHubToken       string `mapstructure:"github_token" yaml:"github_token,omitempty"`
	ShowExperimental  bool   `mapstructure:"show_experimental" yaml:"show_experimental"`
	ShowCustom        bool   `mapstructure:"show_custom" yaml:"show_custom"`
	SortBy            string `mapstructure:"sort_by" yaml:"sort_by"`
	RefreshWorkers    int    `mapstructure:"refresh_workers" yaml:"refresh_workers"`
	DownloadRateLimit int64  `mapstructure:"download_rate_limit" yaml:"download_rate_limit"` // bytes per second, 0 = unlimited
	APIBaseURL        string `mapstructure:"api_base_url" yaml:"api_base_url"`
	LogFile           string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	CustomGamesFile   string `mapstructure:"custom_games_file" yaml:"custom_games_file,omitempty"`
}

// DefaultDir is the folder holding settings, database and caches.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".rkl")
}

// DefaultPath is where settings are read from when no path is given.
func DefaultPath() string { return filepath.Join(DefaultDir(), "settings.yaml") }

// Defaults returns the settings used for keys missing from the file and environment.
func Defaults() Settings {
	dir := DefaultDir()
	return Settings{
		Platform:        "auto",
		GamesPath:       filepath.Join(dir, "games"),
		CachePath:       filepath.Join(dir, "cache"),
		ShowCustom:      true,
		SortBy:          "LastPlayed",
		RefreshWorkers:  4,
		APIBaseURL:      "https://api.github.com",
		CustomGamesFile: filepath.Join(dir, "custom-games.json"),
	}
}

// Load reads settings from path, applying defaults and RKL_* environment overrides
// (for example RKL_GAMES_PATH). A missing file is not an error.
func Load(path string) (*Settings, error) { return load(path, true) }

// LoadFile reads settings from path and defaults only. Use it before Save so values
// coming from the environment are not written to the file.
func LoadFile(path string) (*Settings, error) { return load(path, false) }

func load(path string, withEnv bool) (*Settings, error) {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if withEnv {
		v.SetEnvPrefix("RKL")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	d := Defaults()
	v.SetDefault("platform", d.Platform)
	v.SetDefault("games_path", d.GamesPath)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("github_token", d.GitHubToken)
	v.SetDefault("show_experimental", d.ShowExperimental)
	v.SetDefault("show_custom", d.ShowCustom)
	v.SetDefault("sort_by", d.SortBy)
	v.SetDefault("refresh_workers", d.RefreshWorkers)
	v.SetDefault("download_rate_limit", d.DownloadRateLimit)
	v.SetDefault("api_base_url", d.APIBaseURL)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("custom_games_file", d.CustomGamesFile)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("Failed to read settings")
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("No settings file, using defaults")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks values that would otherwise fail deep inside the engine.
func (s *Settings) Validate() error {
	if err := validation.ValidateWorkerCount(s.RefreshWorkers); err != nil {
		return fmt.Errorf("refresh_workers: %w", err)
	}
	if err := validation.ValidatePlatform(s.Platform); err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if err := validation.ValidateSortMode(s.SortBy); err != nil {
		return fmt.Errorf("sort_by: %w", err)
	}
	if err := validation.ValidateNonEmptyString("games_path", s.GamesPath); err != nil {
		return err
	}
	if s.DownloadRateLimit < 0 {
		return fmt.Errorf("download_rate_limit must not be negative")
	}
	return nil
}

// Save writes s to path as YAML, replacing the whole file.
func (s *Settings) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	log.Debug().Str("path", path).Msg("Settings saved")
	return nil
}
