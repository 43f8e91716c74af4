package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortify/internal/language"
	"github.com/forPelevin/shortify/internal/pipeline"
	"github.com/forPelevin/shortify/internal/runstore"
	"github.com/forPelevin/shortify/internal/usecase"
)

type runFlags struct {
	out        string
	color      string
	language   string
	noCaptions bool
	sidecar    bool
	fps        int
	timeout    time.Duration
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Reframe a local video to 9:16 and burn in captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShort(cmd, g, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output MP4 (default <output_dir>/Short_<id>.mp4)")
	cmd.Flags().StringVar(&f.color, "color", "", "Caption colour, #RRGGBB or a name")
	cmd.Flags().StringVar(&f.language, "language", "", fmt.Sprintf("Spoken language, ISO 639-1 (%v) or auto", language.Suggested))
	cmd.Flags().BoolVar(&f.noCaptions, "no-captions", false, "Skip transcription and captions")
	cmd.Flags().BoolVar(&f.sidecar, "sidecar", false, "Also write an .ass subtitle file")
	cmd.Flags().IntVar(&f.fps, "fps", 0, "Output frame rate")

	// Hidden tuning flag (internal)
	cmd.Flags().DurationVar(&f.timeout, "timeout", 3*time.Hour, "Abort the run after this long")
	_ = cmd.Flags().MarkHidden("timeout")
	return cmd
}

func runShort(cmd *cobra.Command, g *globalFlags, f *runFlags, input string) error {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if f.fps > 0 {
		cfg.Video.FPS = f.fps
	}
	if f.sidecar {
		cfg.Captions.SidecarASS = true
	}

	store, err := runstore.Open(cfg.Paths.StateDB)
	if err != nil {
		return err
	}
	defer store.Close()

	pcfg, err := pipeline.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	pcfg.Logger = log
	pcfg.Store = store
	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req := pipeline.Request{
		InputMP4: input,
		OutMP4:   f.out,
		Color:    f.color,
		Language: f.language,
		Notify: func(s usecase.State, msg string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", s, msg)
		},
	}
	if f.noCaptions {
		off := false
		req.Captions = &off
	}

	job, res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", job.ID)
	fmt.Fprintf(out, "output: %s\n", res.Output)
	if res.Sidecar != "" {
		fmt.Fprintf(out, "subtitles: %s\n", res.Sidecar)
	}
	fmt.Fprintf(out, "frames: %d (%d without a face), captions: %d\n", res.Frames, res.Faceless, res.Overlays)
	return nil
}
