package captions

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer draws caption text into a transparent image width pixels wide.
type Renderer interface {
	Render(text string, width int, fill color.Color) (*image.RGBA, error)
}

var errNoText = errors.New("captions: nothing to render")

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// LoadFont parses the TrueType or OpenType font at path. An empty path
// selects the built-in Go Bold face.
func LoadFont(path string) (*opentype.Font, error) {
	if path == "" {
		return boldFont()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read caption font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse caption font %s: %w", path, err)
	}
	return f, nil
}

// OutlineRenderer wraps text by column count, then by pixel width, and draws
// each line centred, outline first and fill on top. A face is not safe for
// concurrent use, so each run builds its own renderer.
type OutlineRenderer struct {
	face    font.Face
	outline color.Color
	columns int
	stroke  int
	gap     int
}

func NewOutlineRenderer(s Style) (*OutlineRenderer, error) {
	f, err := LoadFont(s.FontFile)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    s.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("caption font face: %w", err)
	}
	return &OutlineRenderer{
		face:    face,
		outline: s.Outline,
		columns: s.WrapColumns,
		stroke:  s.StrokeWidth,
		gap:     s.LineGap,
	}, nil
}

func (r *OutlineRenderer) Close() error { return r.face.Close() }

func (r *OutlineRenderer) Render(text string, width int, fill color.Color) (*image.RGBA, error) {
	if width <= 0 {
		return nil, fmt.Errorf("captions: invalid width %d", width)
	}
	lines := r.layout(text, width)
	if len(lines) == 0 {
		return nil, errNoText
	}

	m := r.face.Metrics()
	lineH := m.Height.Ceil()
	ascent := m.Ascent.Ceil()
	pad := r.stroke
	height := 2*pad + len(lines)*lineH + (len(lines)-1)*r.gap

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	outline := image.NewUniform(r.outline)
	solid := image.NewUniform(fill)

	for i, ln := range lines {
		x := (width - r.advance(ln)) / 2
		y := pad + i*(lineH+r.gap) + ascent
		if r.stroke > 0 {
			s := r.stroke
			for _, off := range [4]image.Point{{-s, -s}, {s, -s}, {-s, s}, {s, s}} {
				r.drawLine(img, outline, ln, x+off.X, y+off.Y)
			}
		}
		r.drawLine(img, solid, ln, x, y)
	}
	return img, nil
}

func (r *OutlineRenderer) drawLine(dst *image.RGBA, src image.Image, text string, x, y int) {
	d := font.Drawer{Dst: dst, Src: src, Face: r.face, Dot: fixed.P(x, y)}
	d.DrawString(text)
}

// layout wraps text by columns and re-breaks any line whose advance, with the
// outline on both sides, does not fit in width. A word too wide on its own is
// split between runes.
func (r *OutlineRenderer) layout(text string, width int) []string {
	limit := width - 2*r.stroke
	if limit <= 0 {
		limit = width
	}
	var out []string
	for _, ln := range Wrap(text, r.columns) {
		if r.advance(ln) <= limit {
			out = append(out, ln)
			continue
		}
		cur := ""
		for _, w := range strings.Fields(ln) {
			for r.advance(w) > limit {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				var head string
				head, w = r.cut(w, limit)
				out = append(out, head)
			}
			switch {
			case w == "":
			case cur == "":
				cur = w
			case r.advance(cur+" "+w) <= limit:
				cur += " " + w
			default:
				out = append(out, cur)
				cur = w
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// cut splits w after the longest rune prefix that fits in limit, keeping at
// least one rune in the prefix.
func (r *OutlineRenderer) cut(w string, limit int) (string, string) {
	runes := []rune(w)
	n := 1
	for n < len(runes) && r.advance(string(runes[:n+1])) <= limit {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

func (r *OutlineRenderer) advance(s string) int {
	return font.MeasureString(r.face, s).Ceil()
}
