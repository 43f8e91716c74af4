package tracking

import (
	"math"
	"testing"

	"github.com/forPelevin/shortify/internal/types"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.Push(v)
	}
	if h.Mean() != 4 {
		t.Fatalf("mean = %v, want 4", h.Mean())
	}
	h.Push(9)
	if h.Mean() != 6 {
		t.Fatalf("mean after push = %v, want 6", h.Mean())
	}
}

func TestUpdate_NoFacesConvergesToFrameCenter(t *testing.T) {
	tr := New(25)
	for i := 1; i <= 40; i++ {
		got := tr.Update(nil, 1920)
		if got != 960 {
			t.Fatalf("call %d: stable center = %v, want 960", i, got)
		}
	}
}

func TestUpdate_EmptyFramesPullTowardCenter(t *testing.T) {
	tr := New(4)
	box := []types.BoundingBox{{X: 0, Y: 0, Width: 200, Height: 200}}
	tr.Update(box, 1000) // 100
	got := tr.Update(nil, 1000)
	if got != 300 { // (100 + 500) / 2
		t.Fatalf("stable center = %v, want 300", got)
	}
}

func TestUpdate_ConvergesToFaceCenter(t *testing.T) {
	tr := New(25)
	// Seed the history with empty frames so convergence has to happen.
	for i := 0; i < 25; i++ {
		tr.Update(nil, 1000)
	}
	box := []types.BoundingBox{{X: 100, Y: 0, Width: 200, Height: 200}}
	var got float64
	for i := 0; i < 25; i++ {
		got = tr.Update(box, 1000)
	}
	if got != 200 {
		t.Fatalf("stable center after 25 frames = %v, want 200", got)
	}
}

func TestUpdate_JumpIsBoundedByCapacity(t *testing.T) {
	const n = 20
	tr := New(n)
	left := []types.BoundingBox{{X: 0, Y: 0, Width: 100, Height: 100}}
	right := []types.BoundingBox{{X: 1700, Y: 0, Width: 100, Height: 100}}
	var prev float64
	for i := 0; i < n; i++ {
		prev = tr.Update(left, 1920)
	}
	next := tr.Update(right, 1920)
	jump := 1750.0 - 50.0
	if diff := math.Abs(next - prev); diff > jump/n+1e-9 {
		t.Fatalf("center moved %v in one frame, want <= %v", diff, jump/n)
	}
}

func TestDominant_LargestAreaWins(t *testing.T) {
	boxes := []types.BoundingBox{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 500, Y: 0, Width: 50, Height: 40},
		{X: 900, Y: 0, Width: 30, Height: 30},
	}
	got, ok := Dominant(boxes)
	if !ok || got.X != 500 {
		t.Fatalf("dominant = %+v, want box at x=500", got)
	}
}

func TestDominant_TieKeepsFirstReported(t *testing.T) {
	boxes := []types.BoundingBox{
		{X: 700, Y: 0, Width: 40, Height: 50},
		{X: 100, Y: 0, Width: 50, Height: 40},
	}
	for i := 0; i < 5; i++ {
		got, _ := Dominant(boxes)
		if got.X != 700 {
			t.Fatalf("tie picked x=%d, want first reported x=700", got.X)
		}
	}
	if _, ok := Dominant(nil); ok {
		t.Fatalf("expected no dominant box for empty input")
	}
}
