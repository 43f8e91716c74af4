package subtitles

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/forPelevin/shortify/internal/types"
)

// Cue is one caption line group with clip-relative timing.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Lines []string
}

type Options struct {
	PlayRes     types.Size
	FontSize    float64
	Primary     color.RGBA
	Outline     color.RGBA
	StrokeWidth int
	// MarginV is the distance from the top of the frame to the caption block.
	MarginV int
}

// RenderASS writes cues as an ASS script using a single outlined style. It
// mirrors the burned-in captions so players can show them as a soft track.
func RenderASS(cues []Cue, opts Options) string {
	var b strings.Builder
	b.WriteString(assHeader(opts))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		if c.End <= c.Start || len(c.Lines) == 0 {
			continue
		}
		parts := make([]string, 0, len(c.Lines))
		for _, ln := range c.Lines {
			if s := sanitizeASS(ln); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			continue
		}
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(c.Start))
		b.WriteString(",")
		b.WriteString(assTime(c.End))
		b.WriteString(",Short,,0,0,0,,")
		b.WriteString(strings.Join(parts, "\\N"))
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader(o Options) string {
	// Alignment 8 is top-centre, so MarginV is measured from the top edge.
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Short, Go, %s, %s, %s, %s, &H64000000, 1,0,0,0,100,100,0,0,1,%d,0,8, 54,54,%d,1
`, o.PlayRes.Width, o.PlayRes.Height,
		formatSize(o.FontSize), assColor(o.Primary), assColor(o.Primary), assColor(o.Outline),
		o.StrokeWidth, o.MarginV))
}

// assColor encodes c as &HAABBGGRR with ASS's inverted alpha.
func assColor(c color.RGBA) string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", 0xff-c.A, c.B, c.G, c.R)
}

func formatSize(v float64) string {
	if v == float64(int(v)) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
