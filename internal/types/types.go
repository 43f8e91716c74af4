package types

import (
	"image"
	"strings"
	"time"
	"unicode/utf8"
)

// MinCaptionRunes is the shortest segment text worth showing.
const MinCaptionRunes = 2

type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) StartDuration() time.Duration { return Seconds(s.Start) }
func (s Segment) EndDuration() time.Duration   { return Seconds(s.End) }

// Valid reports whether the segment has a positive duration and enough text.
func (s Segment) Valid() bool {
	if s.End <= s.Start {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(s.Text)) >= MinCaptionRunes
}

// FullText joins segment texts when the transcriber did not report one.
func (t Transcript) FullText() string {
	if strings.TrimSpace(t.Text) != "" {
		return strings.TrimSpace(t.Text)
	}
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b BoundingBox) Area() int { return b.Width * b.Height }

func (b BoundingBox) CenterX() float64 { return float64(b.X) + float64(b.Width)/2 }

func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// CropWindow is the horizontal span [X1, X2) taken from a source frame.
type CropWindow struct {
	X1 int `json:"x1"`
	X2 int `json:"x2"`
}

func (w CropWindow) Width() int { return w.X2 - w.X1 }

// Frame is one decoded picture sampled at Time.
type Frame struct {
	Image *image.RGBA
	Index int
	Time  time.Duration
}

// MediaInfo is what the pipeline needs to know about a source before running.
type MediaInfo struct {
	Width    int
	Height   int
	Duration time.Duration
	HasAudio bool
}

type Size struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func Seconds(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
