package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/forPelevin/shortify/internal/language"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheDir, err = expandOr(c.Paths.CacheDir, defaultCacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandOr(c.Paths.OutputDir, defaultOutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDB, err = expandOr(c.Paths.StateDB, defaultStateDB); err != nil {
		return fmt.Errorf("paths.state_db: %w", err)
	}

	c.Video.FFmpeg = trimOr(c.Video.FFmpeg, defaultFFmpeg)
	c.Video.FFprobe = trimOr(c.Video.FFprobe, defaultFFprobe)

	if c.Faces.Cascade, err = expandOr(c.Faces.Cascade, defaultCascade); err != nil {
		return fmt.Errorf("faces.cascade: %w", err)
	}

	c.Captions.Color = trimOr(c.Captions.Color, defaultCaptionColor)
	if c.Captions.FontFile = strings.TrimSpace(c.Captions.FontFile); c.Captions.FontFile != "" {
		if c.Captions.FontFile, err = ExpandPath(c.Captions.FontFile); err != nil {
			return fmt.Errorf("captions.font_file: %w", err)
		}
	}
	if c.Captions.Language, err = language.Normalize(c.Captions.Language); err != nil {
		return fmt.Errorf("%w: captions.language: %v", ErrInvalid, err)
	}

	c.Transcriber.Backend = strings.ToLower(trimOr(c.Transcriber.Backend, defaultBackend))
	c.Transcriber.WhisperBin = trimOr(c.Transcriber.WhisperBin, defaultWhisperBin)
	if c.Transcriber.WhisperModel, err = expandOr(c.Transcriber.WhisperModel, defaultWhisperModel); err != nil {
		return fmt.Errorf("transcriber.whisper_model: %w", err)
	}
	c.Transcriber.BaseURL = trimOr(c.Transcriber.BaseURL, defaultWhisperURL)
	c.Transcriber.Model = trimOr(c.Transcriber.Model, defaultWhisperAPI)
	if v, ok := os.LookupEnv(APIKeyEnv); ok && strings.TrimSpace(v) != "" {
		c.Transcriber.APIKey = strings.TrimSpace(v)
	}

	c.API.Bind = trimOr(c.API.Bind, defaultAPIBind)
	c.Logging.Format = strings.ToLower(trimOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(trimOr(c.Logging.Level, defaultLogLevel))
	return nil
}

func trimOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func expandOr(v, def string) (string, error) {
	return ExpandPath(trimOr(v, def))
}
