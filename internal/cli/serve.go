package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortify/internal/api"
	"github.com/forPelevin/shortify/internal/pipeline"
	"github.com/forPelevin/shortify/internal/runstore"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept uploads over HTTP and process them in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load(cmd)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if bind != "" {
				cfg.API.Bind = bind
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
			if err := p.Preload(); err != nil {
				return err
			}

			srv := api.New(api.Options{
				Runner:         p,
				Ledger:         store,
				UploadDir:      filepath.Join(cfg.Paths.CacheDir, "uploads"),
				MaxUploadBytes: cfg.API.MaxUploadMB << 20,
				Logger:         log,
			})
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, cfg.API.Bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	return cmd
}
