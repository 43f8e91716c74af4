package reframe

import (
	"fmt"
	"image"
	"time"

	"github.com/forPelevin/shortify/internal/domain/tracking"
	"github.com/forPelevin/shortify/internal/ports"
	"github.com/forPelevin/shortify/internal/types"
)

type TransformConfig struct {
	Source  types.Size
	Output  types.Size
	Aspect  Aspect
	History int
}

// Transform is the per-frame reframing step of one run: detect, smooth, crop,
// resize. Frames must arrive in increasing presentation order.
type Transform struct {
	cfg       TransformConfig
	cropWidth int
	detector  ports.FaceDetector
	tracker   *tracking.Tracker

	lastTime time.Duration
	started  bool
	frames   int
	faceless int
}

func NewTransform(cfg TransformConfig, detector ports.FaceDetector) (*Transform, error) {
	if detector == nil {
		return nil, fmt.Errorf("reframe: detector is nil")
	}
	cw := CropWidth(cfg.Source.Height, cfg.Aspect)
	if err := CheckCrop(cfg.Source.Width, cw); err != nil {
		return nil, fmt.Errorf("reframe %dx%d to %s: %w", cfg.Source.Width, cfg.Source.Height, cfg.Aspect, err)
	}
	if cfg.Output.Width <= 0 || cfg.Output.Height <= 0 {
		return nil, fmt.Errorf("reframe: invalid output size %dx%d", cfg.Output.Width, cfg.Output.Height)
	}
	return &Transform{
		cfg:       cfg,
		cropWidth: cw,
		detector:  detector,
		tracker:   tracking.New(cfg.History),
	}, nil
}

func (t *Transform) CropWidth() int { return t.cropWidth }

// Apply returns the portrait frame for f and the window it was cut from.
func (t *Transform) Apply(f types.Frame) (*image.RGBA, types.CropWindow, error) {
	if t.started && f.Time <= t.lastTime {
		return nil, types.CropWindow{}, fmt.Errorf("reframe: frame %d at %s is not after %s", f.Index, f.Time, t.lastTime)
	}
	if f.Image == nil {
		return nil, types.CropWindow{}, fmt.Errorf("reframe: frame %d has no image", f.Index)
	}
	width := f.Image.Bounds().Dx()

	boxes, err := t.detector.Detect(f.Image)
	if err != nil {
		return nil, types.CropWindow{}, fmt.Errorf("detect faces (frame %d): %w", f.Index, err)
	}
	if len(boxes) == 0 {
		t.faceless++
	}
	center := t.tracker.Update(boxes, width)
	win, err := ComputeCrop(center, width, t.cropWidth)
	if err != nil {
		return nil, types.CropWindow{}, err
	}

	t.started = true
	t.lastTime = f.Time
	t.frames++
	return Apply(f.Image, win, t.cfg.Output), win, nil
}

type Stats struct {
	Frames   int
	Faceless int
}

func (t *Transform) Stats() Stats { return Stats{Frames: t.frames, Faceless: t.faceless} }
