package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cn3rd/bcsync/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Credentials
	CookiesPath string `json:"cookies_path"`
	Username    string `json:"username"`

	// Output
	OutputDir      string `json:"output_dir"`
	CachePath      string `json:"cache_path"` // empty disables the download cache
	FileNameFormat string `json:"file_name_format"`

	// Format selection
	Format         string   `json:"format"`
	FormatFallback []string `json:"format_fallback"`

	// Enumeration
	IncludeHidden bool `json:"include_hidden"`

	// Transfers
	MaxConcurrentDownloads    int     `json:"max_concurrent_downloads"`
	DownloadMaxAttempts       int     `json:"download_max_attempts"`
	RetryCooldownSeconds      float64 `json:"retry_cooldown_seconds"`
	RetryExponent             float64 `json:"retry_exponent"`
	RetryJitter               float64 `json:"retry_jitter"`
	RequestPauseSeconds       float64 `json:"request_pause_seconds"`
	AllowedFileSizeDifference float64 `json:"allowed_file_size_difference"`

	// Cover art
	SaveCoverArt         bool `json:"save_cover_art"`
	CoverArtMaxSize      int  `json:"cover_art_max_size"`
	ConvertCoverArtToJPG bool `json:"convert_cover_art_to_jpg"`

	// Tagging of single-track mp3 downloads
	WriteTags bool `json:"write_tags"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		CookiesPath: filepath.Join(homeDir, ".config", "bcsync", "cookies.json"),

		OutputDir:      filepath.Join(homeDir, "Music", "bandcamp-collection"),
		CachePath:      filepath.Join(homeDir, ".config", "bcsync", "download.cache"),
		FileNameFormat: model.DefaultNameTemplate,

		Format: string(model.FormatFLAC),

		MaxConcurrentDownloads:    3,
		DownloadMaxAttempts:       3,
		RetryCooldownSeconds:      1.0,
		RetryExponent:             2.0,
		RetryJitter:               0.3,
		RequestPauseSeconds:       0.5,
		AllowedFileSizeDifference: 0.05,

		SaveCoverArt:         false,
		CoverArtMaxSize:      1000,
		ConvertCoverArtToJPG: true,

		WriteTags: false,
	}
}

// Load reads settings from a JSON file. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file, creating parent directories.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields the pipeline cannot run without.
func (s *Settings) Validate() error {
	if s.Username == "" {
		return errors.New("username is required")
	}
	if s.CookiesPath == "" {
		return errors.New("cookies_path is required")
	}
	if s.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if _, err := model.ParseFormat(s.Format); err != nil {
		return err
	}
	for _, f := range s.FormatFallback {
		if _, err := model.ParseFormat(f); err != nil {
			return fmt.Errorf("format_fallback: %w", err)
		}
	}
	if s.DownloadMaxAttempts < 1 {
		return errors.New("download_max_attempts must be at least 1")
	}
	return nil
}

// FormatPreference returns the preferred format and the fallback order.
// An empty format_fallback means the default best-lossless-first order.
func (s *Settings) FormatPreference() (model.Format, []model.Format) {
	preferred, _ := model.ParseFormat(s.Format)

	if len(s.FormatFallback) == 0 {
		return preferred, model.Formats
	}

	fallback := make([]model.Format, 0, len(s.FormatFallback))
	for _, f := range s.FormatFallback {
		if parsed, err := model.ParseFormat(f); err == nil {
			fallback = append(fallback, parsed)
		}
	}
	return preferred, fallback
}

// RetryCooldown returns the base backoff delay as a duration.
func (s *Settings) RetryCooldown() time.Duration {
	return time.Duration(s.RetryCooldownSeconds * float64(time.Second))
}

// RequestPause returns the politeness delay between successive requests.
func (s *Settings) RequestPause() time.Duration {
	return time.Duration(s.RequestPauseSeconds * float64(time.Second))
}

// ToNameConfig converts settings to a model.NameConfig.
func (s *Settings) ToNameConfig() model.NameConfig {
	tmpl := s.FileNameFormat
	if tmpl == "" {
		tmpl = model.DefaultNameTemplate
	}
	return model.NameConfig{Template: tmpl}
}
