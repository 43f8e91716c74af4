package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/forPelevin/shortify/internal/domain/captions"
	"github.com/forPelevin/shortify/internal/ports"
	"github.com/forPelevin/shortify/internal/types"
)

type fakeVideoTool struct {
	info     types.MediaInfo
	probeErr error
	fps      int

	extractCalls int
	extractedWav string
	encodeSpec   ports.EncodeSpec
	sink         *fakeSink
	sinkCloseErr error
	openedFrames bool
}

func (f *fakeVideoTool) Probe(context.Context, string) (types.MediaInfo, error) {
	return f.info, f.probeErr
}

func (f *fakeVideoTool) ExtractAudioMono16k(_ context.Context, _, outWav string) error {
	f.extractCalls++
	f.extractedWav = outWav
	return os.WriteFile(outWav, []byte("wav"), 0o644)
}

func (f *fakeVideoTool) OpenFrames(_ context.Context, _ string, size types.Size, fps int) (ports.FrameSource, error) {
	f.openedFrames = true
	f.fps = fps
	n := int(f.info.Duration * time.Duration(fps) / time.Second)
	return &fakeSource{size: size, fps: fps, total: n}, nil
}

func (f *fakeVideoTool) OpenEncoder(_ context.Context, spec ports.EncodeSpec) (ports.FrameSink, error) {
	f.encodeSpec = spec
	f.sink = &fakeSink{out: spec.OutMP4, closeErr: f.sinkCloseErr}
	return f.sink, nil
}

type fakeSource struct {
	size  types.Size
	fps   int
	total int
	next  int
}

func (s *fakeSource) Next() (types.Frame, error) {
	if s.next >= s.total {
		return types.Frame{}, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, s.size.Width, s.size.Height))
	for i := range img.Pix {
		img.Pix[i] = 0x80
		if i%4 == 3 {
			img.Pix[i] = 0xff
		}
	}
	f := types.Frame{Image: img, Index: s.next, Time: time.Duration(s.next) * time.Second / time.Duration(s.fps)}
	s.next++
	return f, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeSink struct {
	out      string
	closeErr error
	sizes    []image.Point
	yellow   []bool
	closed   bool
	aborted  bool
}

var yellow = color.RGBA{R: 255, G: 255, A: 255}

func (s *fakeSink) WriteFrame(img *image.RGBA) error {
	if len(s.sizes) == 0 {
		if err := os.WriteFile(s.out, nil, 0o644); err != nil {
			return err
		}
	}
	s.sizes = append(s.sizes, img.Bounds().Size())
	has := false
	for i := 0; i+3 < len(img.Pix) && !has; i += 4 {
		if img.Pix[i] == 255 && img.Pix[i+1] == 255 && img.Pix[i+2] == 0 {
			has = true
		}
	}
	s.yellow = append(s.yellow, has)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	if s.closeErr != nil {
		return s.closeErr
	}
	return os.WriteFile(s.out, []byte("mp4"), 0o644)
}

func (s *fakeSink) Abort() error {
	s.aborted = true
	if err := os.Remove(s.out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type fakeASR struct {
	tr      types.Transcript
	err     error
	calls   int
	wavSeen bool
	lang    string
}

func (f *fakeASR) Transcribe(_ context.Context, wav, lang string) (types.Transcript, error) {
	f.calls++
	f.lang = lang
	if _, err := os.Stat(wav); err == nil {
		f.wavSeen = true
	}
	return f.tr, f.err
}

type fakeDetector struct {
	boxes []types.BoundingBox
	// failOn is the 1-based Detect call that returns err.
	failOn int
	err    error
	calls  int
	closed int
}

func (d *fakeDetector) Detect(*image.RGBA) ([]types.BoundingBox, error) {
	d.calls++
	if d.err != nil && d.calls == d.failOn {
		return nil, d.err
	}
	return d.boxes, nil
}

func (d *fakeDetector) Close() error { d.closed++; return nil }

type notices struct {
	states []State
	msgs   []string
}

func (n *notices) add(s State, msg string) {
	n.states = append(n.states, s)
	n.msgs = append(n.msgs, msg)
}

func newDeps(v *fakeVideoTool, asr *fakeASR, det *fakeDetector) Deps {
	return Deps{
		Video:       v,
		ASR:         asr,
		NewDetector: func() (ports.FaceDetector, error) { return det, nil },
		NewRenderer: func(s captions.Style) (captions.Renderer, error) {
			return captions.NewOutlineRenderer(s)
		},
	}
}
