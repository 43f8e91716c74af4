// Package config loads shortify settings from a TOML file, the environment and
// built-in defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid config")

// Paths holds directories and files shortify reads or writes.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
	StateDB   string `toml:"state_db"`
}

// Video controls decoding, reframing and encoding.
type Video struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	FPS     int    `toml:"fps"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	History int    `toml:"history"`
}

// Faces configures the Haar cascade face detector.
type Faces struct {
	Cascade      string  `toml:"cascade"`
	ScaleFactor  float64 `toml:"scale_factor"`
	MinNeighbors int     `toml:"min_neighbors"`
	MinSize      int     `toml:"min_size"`
}

// Captions controls caption styling and transcription language.
type Captions struct {
	Enabled     bool    `toml:"enabled"`
	Color       string  `toml:"color"`
	Language    string  `toml:"language"`
	FontFile    string  `toml:"font_file"`
	FontSize    float64 `toml:"font_size"`
	StrokeWidth int     `toml:"stroke_width"`
	WrapColumns int     `toml:"wrap_columns"`
	WidthRatio  float64 `toml:"width_ratio"`
	TopRatio    float64 `toml:"top_ratio"`
	SidecarASS  bool    `toml:"sidecar_ass"`
}

// Transcriber selects the speech-to-text backend.
type Transcriber struct {
	// Backend is "whispercpp" or "http".
	Backend      string   `toml:"backend"`
	WhisperBin   string   `toml:"whisper_bin"`
	WhisperModel string   `toml:"whisper_model"`
	BaseURL      string   `toml:"base_url"`
	APIKey       string   `toml:"api_key"`
	Model        string   `toml:"model"`
	AllowedHosts []string `toml:"allowed_hosts"`
}

// API configures the HTTP server started by "shortify serve".
type API struct {
	Bind        string `toml:"bind"`
	MaxUploadMB int64  `toml:"max_upload_mb"`
}

// Logging controls log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the full shortify configuration.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Video       Video       `toml:"video"`
	Faces       Faces       `toml:"faces"`
	Captions    Captions    `toml:"captions"`
	Transcriber Transcriber `toml:"transcriber"`
	API         API         `toml:"api"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/shortify/config.toml")
}

// Load reads path (or the default locations when empty), applies defaults and
// validates the result. It reports the resolved path and whether it existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		f, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := toml.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// Parse decodes TOML text on top of the defaults without touching the
// filesystem.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("shortify.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string { return sampleConfig }

// ExpandPath resolves a leading "~" and returns an absolute, cleaned path.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
