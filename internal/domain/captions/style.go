package captions

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"golang.org/x/text/language"
)

// Style controls how segment text is laid out on a portrait frame.
type Style struct {
	Color    color.RGBA
	Outline  color.RGBA
	Language language.Tag
	// FontFile is a TrueType or OpenType font; empty uses Go Bold.
	FontFile string

	FontSize    float64
	WrapColumns int
	StrokeWidth int
	LineGap     int
	// WidthRatio is the caption box width relative to the frame width.
	WidthRatio float64
	// TopRatio places the top of the caption box relative to the frame height.
	TopRatio float64
}

func DefaultStyle() Style {
	return Style{
		Color:       color.RGBA{R: 0xff, G: 0xff, A: 0xff},
		Outline:     color.RGBA{A: 0xff},
		Language:    language.English,
		FontSize:    85,
		WrapColumns: 18,
		StrokeWidth: 3,
		LineGap:     12,
		WidthRatio:  0.9,
		TopRatio:    0.75,
	}
}

func (s Style) Validate() error {
	if s.FontSize <= 0 {
		return errors.New("font size must be > 0")
	}
	if s.WrapColumns <= 0 {
		return errors.New("wrap columns must be > 0")
	}
	if s.StrokeWidth < 0 {
		return errors.New("stroke width must be >= 0")
	}
	if s.LineGap < 0 {
		return errors.New("line gap must be >= 0")
	}
	if s.WidthRatio <= 0 || s.WidthRatio > 1 {
		return fmt.Errorf("width ratio %.2f out of (0, 1]", s.WidthRatio)
	}
	if s.TopRatio < 0 || s.TopRatio >= 1 {
		return fmt.Errorf("top ratio %.2f out of [0, 1)", s.TopRatio)
	}
	return nil
}

// ParseColor accepts #RRGGBB, #RGB or an SVG/CSS colour name.
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.RGBA{}, errors.New("empty colour")
	}
	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(v, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

// HexColor formats c as #RRGGBB.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
