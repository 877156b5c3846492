package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatJSON SettingsFormat = "json"
)

type Settings struct {
	DataFile       string `json:"data_file"       toml:"data_file"`
	RequestTimeout string `json:"request_timeout" toml:"request_timeout"`
	MaxBodyBytes   int64  `json:"max_body_bytes"  toml:"max_body_bytes"`
	HistoryLimit   int    `json:"history_limit"   toml:"history_limit"`
	LogLevel       string `json:"log_level"       toml:"log_level"`
	LogFormat      string `json:"log_format"      toml:"log_format"`
}

type SettingsFormat string

type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

// Dir is the per-user configuration directory; the database file lives here
// by default too.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return ".apiuse"
		}
		return filepath.Join(home, ".apiuse")
	}
	return filepath.Join(base, "apiuse")
}

func DefaultSettings() Settings {
	return Settings{
		DataFile:       filepath.Join(Dir(), "apiuse.db"),
		RequestTimeout: "15s",
		MaxBodyBytes:   2 * 1024 * 1024,
		HistoryLimit:   200,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Timeout parses RequestTimeout, falling back to the default on a blank or
// malformed value.
func (s Settings) Timeout() time.Duration {
	if dur, err := time.ParseDuration(s.RequestTimeout); err == nil && dur > 0 {
		return dur
	}
	return 15 * time.Second
}

// LoadSettings tries settings.toml first, then settings.json, then falls
// back to defaults when neither exists. Parse errors fail immediately but a
// missing file just skips to the next candidate.
func LoadSettings() (Settings, SettingsHandle, error) {
	dir := Dir()
	candidates := []SettingsHandle{
		{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
		{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				fmt.Errorf("read settings %q: %w", candidate.Path, err),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, SettingsHandle{}, fmt.Errorf(
				"parse settings %q: %w",
				candidate.Path,
				err,
			)
		}
		return applyDefaults(settings), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}

	return DefaultSettings(), SettingsHandle{
		Path:   candidates[0].Path,
		Format: SettingsFormatTOML,
	}, nil
}

func decodeSettings(data []byte, format SettingsFormat) (Settings, error) {
	var settings Settings
	switch format {
	case SettingsFormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case SettingsFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	return settings, nil
}

func applyDefaults(settings Settings) Settings {
	defaults := DefaultSettings()
	if settings.DataFile == "" {
		settings.DataFile = defaults.DataFile
	}
	if settings.RequestTimeout == "" {
		settings.RequestTimeout = defaults.RequestTimeout
	}
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = defaults.HistoryLimit
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	if settings.LogFormat == "" {
		settings.LogFormat = defaults.LogFormat
	}
	return settings
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure settings directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case SettingsFormatTOML:
		data, err = toml.Marshal(settings)
	case SettingsFormatJSON:
		data, err = json.MarshalIndent(settings, "", "  ")
	default:
		return fmt.Errorf("unsupported settings format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
