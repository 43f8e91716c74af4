package cascade

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/forPelevin/shortify/internal/types"
)

const (
	DefaultScaleFactor  = 1.3
	DefaultMinNeighbors = 5
	DefaultModel        = "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"
)

type Options struct {
	Model        string
	ScaleFactor  float64
	MinNeighbors int
	// MinSize drops detections smaller than this many pixels on a side.
	MinSize int
}

// Detector finds frontal faces with an OpenCV Haar cascade. It owns native
// memory, is not safe for concurrent use and must be closed.
type Detector struct {
	classifier gocv.CascadeClassifier
	opts       Options
	gray       gocv.Mat
}

func New(opts Options) (*Detector, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.ScaleFactor <= 1 {
		opts.ScaleFactor = DefaultScaleFactor
	}
	if opts.MinNeighbors <= 0 {
		opts.MinNeighbors = DefaultMinNeighbors
	}
	if _, err := os.Stat(opts.Model); err != nil {
		return nil, fmt.Errorf("face cascade: %w", err)
	}
	c := gocv.NewCascadeClassifier()
	if !c.Load(opts.Model) {
		_ = c.Close()
		return nil, fmt.Errorf("face cascade: failed to load %s", opts.Model)
	}
	return &Detector{classifier: c, opts: opts, gray: gocv.NewMat()}, nil
}

// Detect returns face boxes in the order OpenCV reports them.
func (d *Detector) Detect(frame *image.RGBA) ([]types.BoundingBox, error) {
	b := frame.Bounds()
	if b.Empty() {
		return nil, nil
	}
	if frame.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		compact := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(compact.Pix[y*compact.Stride:(y+1)*compact.Stride], frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		frame = compact
	}
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer mat.Close()

	if err := gocv.CvtColor(mat, &d.gray, gocv.ColorRGBAToGray); err != nil {
		return nil, fmt.Errorf("convert frame to grayscale: %w", err)
	}
	minSize := image.Point{}
	if d.opts.MinSize > 0 {
		minSize = image.Pt(d.opts.MinSize, d.opts.MinSize)
	}
	rects := d.classifier.DetectMultiScaleWithParams(d.gray, d.opts.ScaleFactor, d.opts.MinNeighbors, 0, minSize, image.Point{})
	out := make([]types.BoundingBox, 0, len(rects))
	for _, r := range rects {
		out = append(out, types.BoxFromRect(r))
	}
	return out, nil
}

func (d *Detector) Close() error {
	if err := d.gray.Close(); err != nil {
		return err
	}
	return d.classifier.Close()
}
