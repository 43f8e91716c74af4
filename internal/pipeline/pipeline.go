package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/forPelevin/shortify/internal/config"
	"github.com/forPelevin/shortify/internal/domain/captions"
	"github.com/forPelevin/shortify/internal/domain/reframe"
	"github.com/forPelevin/shortify/internal/language"
	"github.com/forPelevin/shortify/internal/ports"
	"github.com/forPelevin/shortify/internal/ports/adapters/cascade"
	"github.com/forPelevin/shortify/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/shortify/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/shortify/internal/ports/adapters/whisperhttp"
	"github.com/forPelevin/shortify/internal/runstore"
	"github.com/forPelevin/shortify/internal/types"
	"github.com/forPelevin/shortify/internal/usecase"
)

// ErrOutputBusy is returned when another run holds the lock on the output path.
var ErrOutputBusy = errors.New("output is being written by another run")

type Config struct {
	// CacheDir is the base directory for per-run workspaces.
	CacheDir string
	// OutDir receives Short_<id>.mp4 when a request names no output.
	OutDir string

	FFmpegPath  string
	FFprobePath string

	Output  types.Size
	FPS     int
	History int
	Faces   cascade.Options

	Captions   bool
	Language   string
	Style      captions.Style
	SidecarASS bool

	Backend             string
	WhisperBin          string
	WhisperModel        string
	WhisperAPIKey       string
	WhisperAPIModel     string
	WhisperBaseURL      string
	WhisperAllowedHosts []string

	Logger *slog.Logger
	// Store records every run when set.
	Store *runstore.Store
}

// FromConfig maps the loaded file configuration onto a pipeline Config.
func FromConfig(c *config.Config) (Config, error) {
	style, err := c.CaptionStyle()
	if err != nil {
		return Config{}, err
	}
	return Config{
		CacheDir:    c.Paths.CacheDir,
		OutDir:      c.Paths.OutputDir,
		FFmpegPath:  c.Video.FFmpeg,
		FFprobePath: c.Video.FFprobe,
		Output:      types.Size{Width: c.Video.Width, Height: c.Video.Height},
		FPS:         c.Video.FPS,
		History:     c.Video.History,
		Faces: cascade.Options{
			Model:        c.Faces.Cascade,
			ScaleFactor:  c.Faces.ScaleFactor,
			MinNeighbors: c.Faces.MinNeighbors,
			MinSize:      c.Faces.MinSize,
		},
		Captions:            c.Captions.Enabled,
		Language:            c.Captions.Language,
		Style:               style,
		SidecarASS:          c.Captions.SidecarASS,
		Backend:             c.Transcriber.Backend,
		WhisperBin:          c.Transcriber.WhisperBin,
		WhisperModel:        c.Transcriber.WhisperModel,
		WhisperAPIKey:       c.Transcriber.APIKey,
		WhisperAPIModel:     c.Transcriber.Model,
		WhisperBaseURL:      c.Transcriber.BaseURL,
		WhisperAllowedHosts: c.Transcriber.AllowedHosts,
	}, nil
}

func (c Config) Validate() error {
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("output size %dx%d must be positive", c.Output.Width, c.Output.Height)
	}
	if c.FPS <= 0 {
		return errors.New("fps must be > 0")
	}
	if c.History <= 0 {
		return errors.New("history must be > 0")
	}
	if err := c.Style.Validate(); err != nil {
		return fmt.Errorf("caption style: %w", err)
	}
	switch c.Backend {
	case config.BackendWhisperCPP, "":
		if c.WhisperModel == "" {
			return errors.New("whisper model path is required")
		}
		return nil
	case config.BackendHTTP:
		return whisperhttp.ValidateBaseURL(c.WhisperBaseURL, c.WhisperAllowedHosts)
	default:
		return fmt.Errorf("unknown transcriber backend %q", c.Backend)
	}
}

// Pipeline wires the adapters once and runs any number of requests, possibly
// concurrently.
type Pipeline struct {
	cfg Config
	log *slog.Logger
	uc  usecase.Usecase
	now func() time.Time
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	var asr ports.ASR
	switch cfg.Backend {
	case config.BackendHTTP:
		asr = whisperhttp.New(cfg.WhisperAPIKey, cfg.WhisperAPIModel, cfg.WhisperBaseURL)
	default:
		asr = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	}
	faces := cfg.Faces

	uc := usecase.New(usecase.Deps{
		Video: v,
		ASR:   asr,
		NewDetector: func() (ports.FaceDetector, error) {
			return cascade.New(faces)
		},
		NewRenderer: func(s captions.Style) (captions.Renderer, error) {
			return captions.NewOutlineRenderer(s)
		},
	})
	return &Pipeline{cfg: cfg, log: log, uc: uc, now: time.Now}, nil
}

// Preload resolves the shared whisper.cpp model so the first run does not pay
// for it and a bad path fails at startup.
func (p *Pipeline) Preload() error {
	if !p.cfg.Captions || p.cfg.Backend == config.BackendHTTP {
		return nil
	}
	m, err := whispercpp.Shared(p.cfg.WhisperBin, p.cfg.WhisperModel)
	if err != nil {
		return err
	}
	p.log.Info("whisper model ready", slog.String("model", m.Path()), slog.Int64("bytes", m.Size()))
	return nil
}

// Request is one reframing job. Empty fields fall back to the Config.
type Request struct {
	ID       string
	InputMP4 string
	OutMP4   string
	Captions *bool
	Color    string
	Language string
	Notify   func(usecase.State, string)
}

// Job is a validated request with every path resolved.
type Job struct {
	ID       string
	InputMP4 string
	OutMP4   string
	WorkDir  string
	Sidecar  string
	Captions bool
	Language string
	Style    captions.Style
	Notify   func(usecase.State, string)
}

// Prepare validates req, resolves its paths and records it in the store.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (Job, error) {
	if req.InputMP4 == "" {
		return Job{}, errors.New("input is empty")
	}
	in, err := filepath.Abs(req.InputMP4)
	if err != nil {
		return Job{}, err
	}
	if st, err := os.Stat(in); err != nil {
		return Job{}, fmt.Errorf("stat input: %w", err)
	} else if st.IsDir() {
		return Job{}, fmt.Errorf("input %s is a directory", in)
	}

	job := Job{
		ID:       req.ID,
		InputMP4: in,
		Captions: p.cfg.Captions,
		Language: p.cfg.Language,
		Style:    p.cfg.Style,
		Notify:   req.Notify,
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if req.Captions != nil {
		job.Captions = *req.Captions
	}
	if req.Language != "" {
		if job.Language, err = language.Normalize(req.Language); err != nil {
			return Job{}, err
		}
	}
	if req.Color != "" {
		if job.Style.Color, err = captions.ParseColor(req.Color); err != nil {
			return Job{}, err
		}
	}

	job.OutMP4 = req.OutMP4
	if job.OutMP4 == "" {
		job.OutMP4 = filepath.Join(p.cfg.OutDir, defaultOutputName(job.ID))
	}
	if job.OutMP4, err = filepath.Abs(job.OutMP4); err != nil {
		return Job{}, err
	}
	if job.OutMP4 == in {
		return Job{}, errors.New("output must differ from input")
	}
	if p.cfg.SidecarASS && job.Captions {
		job.Sidecar = strings.TrimSuffix(job.OutMP4, filepath.Ext(job.OutMP4)) + ".ass"
	}
	job.WorkDir = buildRunWorkDir(p.cfg.CacheDir, in, job.ID, p.now())

	if p.cfg.Store != nil {
		_, err := p.cfg.Store.Create(ctx, runstore.Run{
			ID:       job.ID,
			Input:    job.InputMP4,
			Output:   job.OutMP4,
			State:    string(usecase.Idle),
			Language: job.Language,
			Color:    captions.HexColor(job.Style.Color),
			Captions: job.Captions,
		})
		if err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

// Execute runs a prepared job to completion and records its outcome.
func (p *Pipeline) Execute(ctx context.Context, job Job) (res usecase.Result, err error) {
	log := p.log.With(slog.String("run_id", job.ID))
	defer func() { p.finish(job, res, err) }()

	if err := os.MkdirAll(filepath.Dir(job.OutMP4), 0o755); err != nil {
		return usecase.Result{}, err
	}
	lock := flock.New(job.OutMP4 + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return usecase.Result{}, fmt.Errorf("lock output: %w", err)
	}
	if !ok {
		return usecase.Result{}, fmt.Errorf("%w: %s", ErrOutputBusy, job.OutMP4)
	}
	// Unlock only. The lock file must keep one inode for every run.
	defer func() { _ = lock.Unlock() }()

	log.Info("run started",
		slog.String("input", job.InputMP4),
		slog.String("output", job.OutMP4),
		slog.String("language", language.Name(job.Language)),
		slog.Bool("captions", job.Captions),
	)
	return p.uc.Run(ctx, usecase.Input{
		InputMP4:   job.InputMP4,
		OutMP4:     job.OutMP4,
		WorkDir:    job.WorkDir,
		Output:     p.cfg.Output,
		Aspect:     reframe.Portrait,
		FPS:        p.cfg.FPS,
		History:    p.cfg.History,
		Captions:   job.Captions,
		Language:   job.Language,
		Style:      job.Style,
		SidecarASS: job.Sidecar,
		Notify:     p.notifier(job),
		Logger:     log,
	})
}

// Run prepares and executes req.
func (p *Pipeline) Run(ctx context.Context, req Request) (Job, usecase.Result, error) {
	job, err := p.Prepare(ctx, req)
	if err != nil {
		return Job{}, usecase.Result{}, err
	}
	res, err := p.Execute(ctx, job)
	return job, res, err
}

func (p *Pipeline) notifier(job Job) func(usecase.State, string) {
	return func(s usecase.State, msg string) {
		if p.cfg.Store != nil && !s.Terminal() {
			if err := p.cfg.Store.UpdateState(context.Background(), job.ID, string(s), msg); err != nil {
				p.log.Warn("record run state", slog.String("run_id", job.ID), slog.Any("error", err))
			}
		}
		if job.Notify != nil {
			job.Notify(s, msg)
		}
	}
}

func (p *Pipeline) finish(job Job, res usecase.Result, err error) {
	if p.cfg.Store == nil {
		return
	}
	o := runstore.Outcome{
		State:    string(usecase.Done),
		Output:   res.Output,
		Sidecar:  res.Sidecar,
		Frames:   res.Frames,
		Faceless: res.Faceless,
		Overlays: res.Overlays,
	}
	if err != nil {
		o.State = string(usecase.Failed)
		o.Err = err
	}
	if ferr := p.cfg.Store.Finish(context.Background(), job.ID, o); ferr != nil {
		p.log.Warn("record run outcome", slog.String("run_id", job.ID), slog.Any("error", ferr))
	}
}

func defaultOutputName(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 6 {
		hex = hex[:6]
	}
	return fmt.Sprintf("Short_%s.mp4", hex)
}

func buildRunWorkDir(cacheRoot, inputMP4, id string, now time.Time) string {
	if cacheRoot == "" {
		cacheRoot = ".cache"
	}
	name := strings.TrimSuffix(filepath.Base(inputMP4), filepath.Ext(inputMP4))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return filepath.Join(cacheRoot, "runs", fmt.Sprintf("%s-%s-%s", name, ts, short))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.ASR = (*whisperhttp.Adapter)(nil)
var _ ports.FaceDetector = (*cascade.Detector)(nil)
