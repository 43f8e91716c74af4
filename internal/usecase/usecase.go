package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forPelevin/shortify/internal/domain/captions"
	"github.com/forPelevin/shortify/internal/domain/reframe"
	"github.com/forPelevin/shortify/internal/domain/subtitles"
	"github.com/forPelevin/shortify/internal/language"
	"github.com/forPelevin/shortify/internal/ports"
	"github.com/forPelevin/shortify/internal/types"
)

// ErrConfig marks problems detected before any stage runs.
var ErrConfig = errors.New("config")

// MaxOutputSide bounds each output dimension; libx264 with yuv420p also needs
// both to be even.
const MaxOutputSide = 4096

type Deps struct {
	Video       ports.VideoTool
	ASR         ports.ASR
	NewDetector func() (ports.FaceDetector, error)
	NewRenderer func(captions.Style) (captions.Renderer, error)
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	InputMP4 string
	OutMP4   string
	// WorkDir holds the run's temporaries and is removed when Run returns.
	WorkDir string

	Output  types.Size
	Aspect  reframe.Aspect
	FPS     int
	History int

	Captions   bool
	Language   string
	Style      captions.Style
	SidecarASS string

	Notify func(State, string)
	Logger *slog.Logger
}

type Result struct {
	Output    string
	Sidecar   string
	Source    types.MediaInfo
	CropWidth int
	Segments  int
	Overlays  int
	Frames    int
	Faceless  int
}

func (in Input) validate() error {
	switch {
	case in.InputMP4 == "":
		return fmt.Errorf("%w: input is empty", ErrConfig)
	case in.OutMP4 == "":
		return fmt.Errorf("%w: output is empty", ErrConfig)
	case in.WorkDir == "":
		return fmt.Errorf("%w: work dir is empty", ErrConfig)
	case in.Output.Width <= 0 || in.Output.Height <= 0,
		in.Output.Width > MaxOutputSide || in.Output.Height > MaxOutputSide,
		in.Output.Width%2 != 0 || in.Output.Height%2 != 0:
		return fmt.Errorf("%w: unsupported output size %dx%d", ErrConfig, in.Output.Width, in.Output.Height)
	case in.FPS <= 0:
		return fmt.Errorf("%w: fps must be > 0", ErrConfig)
	}
	return nil
}

type run struct {
	u      Usecase
	in     Input
	log    *slog.Logger
	state  State
	lang   string
	temps  []string
	closer []io.Closer
}

func (u Usecase) Run(ctx context.Context, in Input) (res Result, err error) {
	r := &run{u: u, in: in, log: in.Logger, state: Idle, lang: in.Language}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	defer func() {
		r.cleanup()
		if err != nil {
			r.notify(Failed, err.Error())
		}
	}()
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) (Result, error) {
	in := r.in
	r.enter(Idle)
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return Result{}, r.fail(err)
	}
	r.temps = append(r.temps, in.WorkDir)

	info, err := r.u.d.Video.Probe(ctx, in.InputMP4)
	if err != nil {
		return Result{}, r.fail(err)
	}
	cropW := reframe.CropWidth(info.Height, in.Aspect)
	if err := reframe.CheckCrop(info.Width, cropW); err != nil {
		return Result{}, fmt.Errorf("%w: source %dx%d cannot produce %s: %w", ErrConfig, info.Width, info.Height, in.Aspect, err)
	}
	res := Result{Source: info, CropWidth: cropW}
	r.log.Info("source probed",
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Duration("duration", info.Duration),
		slog.Bool("audio", info.HasAudio),
		slog.Int("crop_width", cropW),
	)

	segments, err := r.transcribe(ctx, info)
	if err != nil {
		return Result{}, err
	}
	res.Segments = len(segments)

	r.enter(Reframing)
	tf, err := r.buildTransform(info)
	if err != nil {
		return Result{}, r.fail(err)
	}

	r.enter(Compositing)
	comp, overlays, err := r.buildOverlays(segments)
	if err != nil {
		return Result{}, r.fail(err)
	}
	res.Overlays = len(overlays)
	sidecar, err := r.writeSidecar(overlays)
	if err != nil {
		return Result{}, r.fail(err)
	}

	r.enter(Exporting)
	partial, err := r.export(ctx, info, tf, comp)
	if err != nil {
		return Result{}, r.fail(err)
	}
	if err := r.publish(partial, in.OutMP4); err != nil {
		return Result{}, r.fail(err)
	}
	res.Output = in.OutMP4
	if sidecar != "" {
		if err := r.publish(sidecar, in.SidecarASS); err != nil {
			_ = os.Remove(in.OutMP4)
			return Result{}, r.fail(err)
		}
		res.Sidecar = in.SidecarASS
	}
	st := tf.Stats()
	res.Frames, res.Faceless = st.Frames, st.Faceless

	r.cleanup()
	r.enter(Done)
	r.log.Info("run finished",
		slog.String("output", res.Output),
		slog.Int("frames", res.Frames),
		slog.Int("faceless_frames", res.Faceless),
		slog.Int("overlays", res.Overlays),
	)
	return res, nil
}

// transcribe runs ExtractingAudio and Transcribing, or skips both.
func (r *run) transcribe(ctx context.Context, info types.MediaInfo) ([]types.Segment, error) {
	switch {
	case !r.in.Captions:
		r.notice("Captions disabled, skipping transcription.")
		return nil, nil
	case !info.HasAudio:
		r.notice("Source has no audio track, skipping captions.")
		return nil, nil
	}

	r.enter(ExtractingAudio)
	wav := filepath.Join(r.in.WorkDir, "audio.wav")
	if err := r.u.d.Video.ExtractAudioMono16k(ctx, r.in.InputMP4, wav); err != nil {
		return nil, r.fail(err)
	}

	r.enter(Transcribing)
	r.log.Debug("transcribing", slog.String("language", language.Name(r.in.Language)))
	tr, err := r.u.d.ASR.Transcribe(ctx, wav, r.in.Language)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := os.Remove(wav); err != nil && !os.IsNotExist(err) {
		r.log.Warn("remove extracted audio", slog.Any("error", err))
	}
	if r.lang == language.Auto {
		if detected, ok := language.Detected(tr.Language); ok {
			r.lang = detected
		}
	}
	if tr.FullText() == "" {
		r.notice("No speech detected, captions skipped.")
		return nil, nil
	}
	valid := make([]types.Segment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	if dropped := len(tr.Segments) - len(valid); dropped > 0 {
		r.log.Debug("dropped unusable segments", slog.Int("count", dropped))
	}
	return valid, nil
}

func (r *run) buildTransform(info types.MediaInfo) (*reframe.Transform, error) {
	det, err := r.u.d.NewDetector()
	if err != nil {
		return nil, err
	}
	r.closer = append(r.closer, det)
	return reframe.NewTransform(reframe.TransformConfig{
		Source:  types.Size{Width: info.Width, Height: info.Height},
		Output:  r.in.Output,
		Aspect:  r.in.Aspect,
		History: r.in.History,
	}, det)
}

func (r *run) buildOverlays(segments []types.Segment) (*captions.Compositor, []captions.Overlay, error) {
	if len(segments) == 0 {
		return nil, nil, nil
	}
	style := r.in.Style
	style.Language = language.Tag(r.lang)
	rend, err := r.u.d.NewRenderer(style)
	if err != nil {
		return nil, nil, err
	}
	if c, ok := rend.(io.Closer); ok {
		r.closer = append(r.closer, c)
	}
	comp, err := captions.NewCompositor(style, r.in.Output, rend)
	if err != nil {
		return nil, nil, err
	}
	overlays, err := comp.Build(segments)
	if err != nil {
		return nil, nil, err
	}
	return comp, overlays, nil
}

func (r *run) writeSidecar(overlays []captions.Overlay) (string, error) {
	if r.in.SidecarASS == "" || len(overlays) == 0 {
		return "", nil
	}
	cues := make([]subtitles.Cue, 0, len(overlays))
	for _, o := range overlays {
		cues = append(cues, subtitles.Cue{
			Start: o.Start,
			End:   o.End,
			Lines: captions.Wrap(o.Text, r.in.Style.WrapColumns),
		})
	}
	ass := subtitles.RenderASS(cues, subtitles.Options{
		PlayRes:     r.in.Output,
		FontSize:    r.in.Style.FontSize,
		Primary:     r.in.Style.Color,
		Outline:     r.in.Style.Outline,
		StrokeWidth: r.in.Style.StrokeWidth,
		MarginV:     int(float64(r.in.Output.Height) * r.in.Style.TopRatio),
	})
	p := filepath.Join(r.in.WorkDir, "captions.ass")
	if err := os.WriteFile(p, []byte(ass), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// export drives the frame loop and returns the path of the finished but
// unpublished file.
func (r *run) export(ctx context.Context, info types.MediaInfo, tf *reframe.Transform, comp *captions.Compositor) (string, error) {
	partial := r.in.OutMP4 + ".partial.mp4"
	if err := os.MkdirAll(filepath.Dir(partial), 0o755); err != nil {
		return "", err
	}
	r.temps = append(r.temps, partial)

	src, err := r.u.d.Video.OpenFrames(ctx, r.in.InputMP4, types.Size{Width: info.Width, Height: info.Height}, r.in.FPS)
	if err != nil {
		return "", err
	}
	defer src.Close()

	spec := ports.EncodeSpec{OutMP4: partial, Size: r.in.Output, FPS: r.in.FPS}
	if info.HasAudio {
		spec.AudioFrom = r.in.InputMP4
	}
	sink, err := r.u.d.Video.OpenEncoder(ctx, spec)
	if err != nil {
		return "", err
	}

	if err := r.pump(ctx, src, sink, tf, comp); err != nil {
		_ = sink.Abort()
		return "", err
	}
	if err := sink.Close(); err != nil {
		_ = sink.Abort()
		return "", err
	}
	return partial, nil
}

func (r *run) pump(ctx context.Context, src ports.FrameSource, sink ports.FrameSink, tf *reframe.Transform, comp *captions.Compositor) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		out, _, err := tf.Apply(f)
		if err != nil {
			return err
		}
		if comp != nil {
			comp.Compose(out, f.Time)
		}
		if err := sink.WriteFrame(out); err != nil {
			return err
		}
	}
}

func (r *run) publish(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("publish %s: %w", to, err)
	}
	return nil
}

// cleanup releases native handles and removes temporaries. It is safe to
// call more than once.
func (r *run) cleanup() {
	for i := len(r.closer) - 1; i >= 0; i-- {
		if err := r.closer[i].Close(); err != nil {
			r.log.Warn("close run resource", slog.Any("error", err))
		}
	}
	r.closer = nil
	for _, p := range r.temps {
		if err := os.RemoveAll(p); err != nil {
			r.log.Warn("remove temporary", slog.String("path", p), slog.Any("error", err))
		}
	}
	r.temps = nil
}

func (r *run) enter(s State) {
	r.state = s
	r.notify(s, stageNotice[s])
}

func (r *run) notice(msg string) { r.notify(r.state, msg) }

func (r *run) notify(s State, msg string) {
	r.log.Info(msg, slog.String("state", string(s)))
	if r.in.Notify != nil {
		r.in.Notify(s, msg)
	}
}

func (r *run) fail(err error) error {
	return &StageError{State: r.state, Err: err}
}
