package subtitles

import (
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/shortify/internal/types"
)

func testOptions() Options {
	return Options{
		PlayRes:     types.Size{Width: 1080, Height: 1920},
		FontSize:    85,
		Primary:     color.RGBA{R: 255, G: 255, A: 255},
		Outline:     color.RGBA{A: 255},
		StrokeWidth: 3,
		MarginV:     1440,
	}
}

func TestRenderASS_DialogueLines(t *testing.T) {
	ass := RenderASS([]Cue{
		{Start: time.Second, End: 3 * time.Second, Lines: []string{"HELLO", "WORLD"}},
		{Start: 4 * time.Second, End: 4 * time.Second, Lines: []string{"EMPTY SPAN"}},
		{Start: 5 * time.Second, End: 6 * time.Second, Lines: []string{"{BAD}"}},
	}, testOptions())

	if !strings.Contains(ass, "Dialogue: 0,0:00:01.00,0:00:03.00,Short,,0,0,0,,HELLO\\NWORLD\n") {
		t.Fatalf("missing first dialogue:\n%s", ass)
	}
	if strings.Contains(ass, "EMPTY SPAN") {
		t.Fatalf("zero-length cue should be dropped:\n%s", ass)
	}
	if !strings.Contains(ass, "(BAD)") {
		t.Fatalf("override braces should be neutralised:\n%s", ass)
	}
	if !strings.Contains(ass, "PlayResX: 1080") || !strings.Contains(ass, "PlayResY: 1920") {
		t.Fatalf("unexpected play resolution:\n%s", ass)
	}
}

func TestAssColor_BGROrder(t *testing.T) {
	if got := assColor(color.RGBA{R: 0xff, G: 0xff, A: 0xff}); got != "&H0000FFFF" {
		t.Fatalf("assColor(yellow) = %s", got)
	}
	if got := assColor(color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}); got != "&H00332211" {
		t.Fatalf("assColor = %s", got)
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
