package tracking

import "github.com/forPelevin/shortify/internal/types"

// DefaultHistory is the number of recent centres averaged per frame.
const DefaultHistory = 25

// History is a fixed-capacity ring of horizontal centres.
type History struct {
	buf  []float64
	next int
	n    int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &History{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value once the ring is full.
func (h *History) Push(v float64) {
	if h.n < len(h.buf) {
		h.n++
	}
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
}

// Mean is the arithmetic mean of the stored values, 0 when empty.
func (h *History) Mean() float64 {
	if h.n == 0 {
		return 0
	}
	var s float64
	for i := 0; i < h.n; i++ {
		s += h.buf[i]
	}
	return s / float64(h.n)
}

// Tracker turns per-frame detections into a stabilised horizontal centre.
// It is owned by a single run and must not be shared between goroutines.
type Tracker struct {
	hist *History
}

func New(capacity int) *Tracker {
	return &Tracker{hist: NewHistory(capacity)}
}

// Update records this frame's raw centre and returns the mean of the history.
// With no boxes the raw centre is the frame's geometric centre.
func (t *Tracker) Update(boxes []types.BoundingBox, frameWidth int) float64 {
	raw := float64(frameWidth) / 2
	if box, ok := Dominant(boxes); ok {
		raw = box.CenterX()
	}
	t.hist.Push(raw)
	return t.hist.Mean()
}

// Dominant returns the largest box by area. Equal areas keep the box the
// detector reported first.
func Dominant(boxes []types.BoundingBox) (types.BoundingBox, bool) {
	if len(boxes) == 0 {
		return types.BoundingBox{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Area() > best.Area() {
			best = b
		}
	}
	return best, true
}
