package captions

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/forPelevin/shortify/internal/types"
)

// Overlay is a rendered caption shown on [Start, End).
type Overlay struct {
	Text   string
	Image  *image.RGBA
	Origin image.Point
	Start  time.Duration
	End    time.Duration
}

func (o Overlay) Active(t time.Duration) bool { return t >= o.Start && t < o.End }

// Compositor maps transcript segments to overlays for one output size and
// draws the active ones onto frames.
type Compositor struct {
	style    Style
	frame    types.Size
	renderer Renderer
	upper    cases.Caser
	overlays []Overlay
}

func NewCompositor(style Style, frame types.Size, r Renderer) (*Compositor, error) {
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("caption style: %w", err)
	}
	if r == nil {
		return nil, errors.New("captions: renderer is nil")
	}
	return &Compositor{
		style:    style,
		frame:    frame,
		renderer: r,
		upper:    cases.Upper(style.Language),
	}, nil
}

// Normalize trims and upper-cases caption text using the style's language.
func (c *Compositor) Normalize(text string) string {
	return c.upper.String(strings.TrimSpace(text))
}

// BuildOverlay renders seg. It reports false for segments with too little
// text or a non-positive duration.
func (c *Compositor) BuildOverlay(seg types.Segment) (Overlay, bool, error) {
	text := c.Normalize(seg.Text)
	if utf8.RuneCountInString(text) < types.MinCaptionRunes {
		return Overlay{}, false, nil
	}
	if seg.End-seg.Start <= 0 {
		return Overlay{}, false, nil
	}
	boxW := int(float64(c.frame.Width) * c.style.WidthRatio)
	img, err := c.renderer.Render(text, boxW, c.style.Color)
	if err != nil {
		return Overlay{}, false, fmt.Errorf("render caption %q: %w", text, err)
	}
	origin := image.Point{
		X: (c.frame.Width - img.Bounds().Dx()) / 2,
		Y: int(float64(c.frame.Height) * c.style.TopRatio),
	}
	return Overlay{
		Text:   text,
		Image:  img,
		Origin: origin,
		Start:  seg.StartDuration(),
		End:    seg.EndDuration(),
	}, true, nil
}

// Build renders every usable segment and keeps the overlays ordered by start
// time. Overlapping segments become independent layers.
func (c *Compositor) Build(segs []types.Segment) ([]Overlay, error) {
	out := make([]Overlay, 0, len(segs))
	for _, s := range segs {
		o, ok, err := c.BuildOverlay(s)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	c.overlays = out
	return out, nil
}

// Compose draws the overlays active at t onto dst, later starts on top, and
// returns how many were drawn.
func (c *Compositor) Compose(dst *image.RGBA, t time.Duration) int {
	n := 0
	for _, o := range c.overlays {
		if o.Start > t {
			break
		}
		if !o.Active(t) {
			continue
		}
		r := o.Image.Bounds().Add(o.Origin)
		draw.Draw(dst, r, o.Image, o.Image.Bounds().Min, draw.Over)
		n++
	}
	return n
}
