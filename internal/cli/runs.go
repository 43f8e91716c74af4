package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/forPelevin/shortify/internal/runstore"
)

func newRunsCommand(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			store, err := runstore.Open(cfg.Paths.StateDB)
			if err != nil {
				return err
			}
			defer store.Close()

			var runs []runstore.Run
			if len(args) == 1 {
				r, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				runs = []runstore.Run{r}
			} else if runs, err = store.List(cmd.Context(), limit); err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func renderRuns(runs []runstore.Run) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Created", "State", "Output", "Frames", "Captions", "Detail"})
	for _, r := range runs {
		detail := r.Message
		if r.Error != "" {
			detail = r.Error
		}
		tw.AppendRow(table.Row{
			shortID(r.ID),
			r.CreatedAt.Local().Format(time.DateTime),
			r.State,
			filepath.Base(r.Output),
			strconv.Itoa(r.Frames),
			strconv.Itoa(r.Overlays),
			text.Trim(detail, 60),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
