package reframe

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/forPelevin/shortify/internal/types"
)

var (
	// ErrCropTooWide means the portrait slice does not fit in the source width.
	ErrCropTooWide = errors.New("crop width exceeds source width")
	ErrInvalidCrop = errors.New("crop width must be > 0")
)

// Aspect is a width:height ratio such as 9:16.
type Aspect struct {
	W int `toml:"w" json:"w"`
	H int `toml:"h" json:"h"`
}

var Portrait = Aspect{W: 9, H: 16}

func (a Aspect) String() string { return fmt.Sprintf("%d:%d", a.W, a.H) }

// CropWidth is the width of a full-height slice with the given aspect.
func CropWidth(sourceHeight int, a Aspect) int {
	if a.W <= 0 || a.H <= 0 {
		a = Portrait
	}
	return sourceHeight * a.W / a.H
}

// CheckCrop validates a crop width against the source width.
func CheckCrop(sourceWidth, cropWidth int) error {
	if cropWidth <= 0 {
		return ErrInvalidCrop
	}
	if cropWidth > sourceWidth {
		return fmt.Errorf("%w: %d > %d", ErrCropTooWide, cropWidth, sourceWidth)
	}
	return nil
}

// ComputeCrop centres a cropWidth-wide window on center and clamps it to the
// source. The left edge is clamped first.
func ComputeCrop(center float64, sourceWidth, cropWidth int) (types.CropWindow, error) {
	if err := CheckCrop(sourceWidth, cropWidth); err != nil {
		return types.CropWindow{}, err
	}
	x1 := int(math.Round(center - float64(cropWidth)/2))
	x2 := x1 + cropWidth
	if x1 < 0 {
		x1, x2 = 0, cropWidth
	} else if x2 > sourceWidth {
		x1, x2 = sourceWidth-cropWidth, sourceWidth
	}
	return types.CropWindow{X1: x1, X2: x2}, nil
}

// Apply crops src to the window at full height and stretches the slice to
// exactly out.Width x out.Height.
func Apply(src *image.RGBA, w types.CropWindow, out types.Size) *image.RGBA {
	b := src.Bounds()
	crop := image.Rect(b.Min.X+w.X1, b.Min.Y, b.Min.X+w.X2, b.Max.Y)
	dst := image.NewRGBA(image.Rect(0, 0, out.Width, out.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
