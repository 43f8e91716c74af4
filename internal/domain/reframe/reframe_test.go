package reframe

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/forPelevin/shortify/internal/types"
)

func TestCropWidth(t *testing.T) {
	tests := []struct {
		height int
		aspect Aspect
		want   int
	}{
		{1080, Portrait, 607},
		{720, Portrait, 405},
		{1920, Aspect{W: 1, H: 1}, 1920},
		{1080, Aspect{}, 607},
	}
	for _, tt := range tests {
		if got := CropWidth(tt.height, tt.aspect); got != tt.want {
			t.Fatalf("CropWidth(%d, %s) = %d, want %d", tt.height, tt.aspect, got, tt.want)
		}
	}
}

func TestComputeCrop(t *testing.T) {
	tests := []struct {
		name   string
		center float64
		want   types.CropWindow
	}{
		{"centered", 960, types.CropWindow{X1: 657, X2: 1264}},
		{"fractional center", 960.5, types.CropWindow{X1: 657, X2: 1264}},
		{"clamp left", 100, types.CropWindow{X1: 0, X2: 607}},
		{"clamp right", 1900, types.CropWindow{X1: 1313, X2: 1920}},
		{"negative center", -50, types.CropWindow{X1: 0, X2: 607}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeCrop(tt.center, 1920, 607)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ComputeCrop(%v) = %+v, want %+v", tt.center, got, tt.want)
			}
		})
	}
}

func TestComputeCrop_AlwaysInBounds(t *testing.T) {
	const src, cw = 1280, 405
	for c := -500.0; c <= 2000; c += 7.25 {
		w, err := ComputeCrop(c, src, cw)
		if err != nil {
			t.Fatalf("center %v: %v", c, err)
		}
		if w.Width() != cw {
			t.Fatalf("center %v: width %d, want %d", c, w.Width(), cw)
		}
		if w.X1 < 0 || w.X1 > src-cw || w.X2 > src {
			t.Fatalf("center %v: window %+v out of bounds", c, w)
		}
	}
}

func TestComputeCrop_Idempotent(t *testing.T) {
	a, errA := ComputeCrop(733.3, 1920, 607)
	b, errB := ComputeCrop(733.3, 1920, 607)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Fatalf("same input gave %+v and %+v", a, b)
	}
}

func TestComputeCrop_RejectsWideCrop(t *testing.T) {
	_, err := ComputeCrop(500, 600, 607)
	if !errors.Is(err, ErrCropTooWide) {
		t.Fatalf("expected ErrCropTooWide, got %v", err)
	}
	if _, err := ComputeCrop(500, 600, 0); !errors.Is(err, ErrInvalidCrop) {
		t.Fatalf("expected ErrInvalidCrop, got %v", err)
	}
}

func TestApply_OutputSizeAndContent(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			if x < 200 {
				src.SetRGBA(x, y, red)
			} else {
				src.SetRGBA(x, y, blue)
			}
		}
	}
	out := Apply(src, types.CropWindow{X1: 250, X2: 350}, types.Size{Width: 90, Height: 160})
	if out.Bounds().Dx() != 90 || out.Bounds().Dy() != 160 {
		t.Fatalf("output size %v, want 90x160", out.Bounds())
	}
	if got := out.RGBAAt(45, 80); got != blue {
		t.Fatalf("center pixel = %v, want %v", got, blue)
	}
}

type stubDetector struct {
	boxes []types.BoundingBox
	calls int
}

func (s *stubDetector) Detect(*image.RGBA) ([]types.BoundingBox, error) {
	s.calls++
	return s.boxes, nil
}

func (s *stubDetector) Close() error { return nil }

func TestTransform_TracksFace(t *testing.T) {
	det := &stubDetector{boxes: []types.BoundingBox{{X: 100, Y: 0, Width: 200, Height: 200}}}
	tf, err := NewTransform(TransformConfig{
		Source:  types.Size{Width: 1000, Height: 400},
		Output:  types.Size{Width: 36, Height: 64},
		Aspect:  Portrait,
		History: 25,
	}, det)
	if err != nil {
		t.Fatalf("new transform: %v", err)
	}
	if tf.CropWidth() != 225 {
		t.Fatalf("crop width = %d, want 225", tf.CropWidth())
	}
	frame := image.NewRGBA(image.Rect(0, 0, 1000, 400))
	var win types.CropWindow
	for i := 0; i < 25; i++ {
		var img *image.RGBA
		img, win, err = tf.Apply(types.Frame{Image: frame, Index: i, Time: time.Duration(i) * time.Second / 24})
		if err != nil {
			t.Fatalf("apply frame %d: %v", i, err)
		}
		if img.Bounds().Dx() != 36 || img.Bounds().Dy() != 64 {
			t.Fatalf("frame %d size %v", i, img.Bounds())
		}
	}
	// center 200, crop 225 -> x1 = round(87.5) = 88
	if win != (types.CropWindow{X1: 88, X2: 313}) {
		t.Fatalf("window = %+v", win)
	}
	if det.calls != 25 {
		t.Fatalf("detector calls = %d, want 25", det.calls)
	}
}

func TestTransform_RejectsOutOfOrderFrames(t *testing.T) {
	tf, err := NewTransform(TransformConfig{
		Source: types.Size{Width: 320, Height: 180},
		Output: types.Size{Width: 18, Height: 32},
	}, &stubDetector{})
	if err != nil {
		t.Fatalf("new transform: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 320, 180))
	if _, _, err := tf.Apply(types.Frame{Image: frame, Index: 1, Time: time.Second}); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, _, err := tf.Apply(types.Frame{Image: frame, Index: 0, Time: 0}); err == nil {
		t.Fatalf("expected error for out-of-order frame")
	}
	if st := tf.Stats(); st.Frames != 1 || st.Faceless != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestNewTransform_PortraitSource(t *testing.T) {
	_, err := NewTransform(TransformConfig{
		Source: types.Size{Width: 100, Height: 1000},
		Output: types.Size{Width: 1080, Height: 1920},
	}, &stubDetector{})
	if !errors.Is(err, ErrCropTooWide) {
		t.Fatalf("expected ErrCropTooWide, got %v", err)
	}
}
