package config

import (
	"fmt"

	"github.com/forPelevin/shortify/internal/domain/captions"
	"github.com/forPelevin/shortify/internal/ports/adapters/whisperhttp"
	"github.com/forPelevin/shortify/internal/usecase"
)

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if err := c.validateVideo(); err != nil {
		return err
	}
	if c.Faces.ScaleFactor <= 1 {
		return fmt.Errorf("%w: faces.scale_factor must be > 1", ErrInvalid)
	}
	if c.Faces.MinNeighbors <= 0 {
		return fmt.Errorf("%w: faces.min_neighbors must be > 0", ErrInvalid)
	}
	if c.Faces.MinSize < 0 {
		return fmt.Errorf("%w: faces.min_size must be >= 0", ErrInvalid)
	}
	if _, err := c.CaptionStyle(); err != nil {
		return err
	}
	if c.Captions.FontFile != "" {
		if _, err := captions.LoadFont(c.Captions.FontFile); err != nil {
			return fmt.Errorf("%w: captions.font_file: %v", ErrInvalid, err)
		}
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if c.API.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: api.max_upload_mb must be > 0", ErrInvalid)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (want auto, console or json)", ErrInvalid, c.Logging.Format)
	}
	return nil
}

func (c *Config) validateVideo() error {
	v := c.Video
	if v.FPS <= 0 || v.FPS > 120 {
		return fmt.Errorf("%w: video.fps %d out of 1..120", ErrInvalid, v.FPS)
	}
	for _, side := range []struct {
		name string
		val  int
	}{{"video.width", v.Width}, {"video.height", v.Height}} {
		if side.val <= 0 || side.val > usecase.MaxOutputSide || side.val%2 != 0 {
			return fmt.Errorf("%w: %s %d must be even and in 2..%d", ErrInvalid, side.name, side.val, usecase.MaxOutputSide)
		}
	}
	if v.History <= 0 {
		return fmt.Errorf("%w: video.history must be > 0", ErrInvalid)
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	t := c.Transcriber
	switch t.Backend {
	case BackendWhisperCPP:
		if t.WhisperModel == "" {
			return fmt.Errorf("%w: transcriber.whisper_model is required", ErrInvalid)
		}
	case BackendHTTP:
		if err := whisperhttp.ValidateBaseURL(t.BaseURL, t.AllowedHosts); err != nil {
			return fmt.Errorf("%w: transcriber.base_url: %v", ErrInvalid, err)
		}
	default:
		return fmt.Errorf("%w: transcriber.backend %q (want %s or %s)", ErrInvalid, t.Backend, BackendWhisperCPP, BackendHTTP)
	}
	return nil
}

// CaptionStyle converts the captions section into a renderer style.
func (c *Config) CaptionStyle() (captions.Style, error) {
	s := captions.DefaultStyle()
	col, err := captions.ParseColor(c.Captions.Color)
	if err != nil {
		return s, fmt.Errorf("%w: captions.color: %v", ErrInvalid, err)
	}
	s.Color = col
	s.FontSize = c.Captions.FontSize
	s.StrokeWidth = c.Captions.StrokeWidth
	s.WrapColumns = c.Captions.WrapColumns
	s.WidthRatio = c.Captions.WidthRatio
	s.TopRatio = c.Captions.TopRatio
	s.FontFile = c.Captions.FontFile
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%w: captions: %v", ErrInvalid, err)
	}
	return s, nil
}
