package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/gomodpack/internal/domain"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past installs, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg.Log.IncludeStdout = false

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.OpenStore(cmd.Context()); err != nil {
				return err
			}
			if a.Store == nil {
				return errors.New("run history is disabled (store.driver: none)")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				run, err := a.Store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRun(w, run)
				return nil
			}

			runs, err := a.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tPACK\tVERSION\tSTATUS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.PackName, r.PackVersion, r.Status, humanize.Time(r.StartedAt))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func printRun(w *tabwriter.Writer, run *domain.Run) {
	fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	fmt.Fprintf(w, "Pack:\t%s %s by %s (Minecraft %s)\n", run.PackName, run.PackVersion, run.Author, run.MCVersion)
	fmt.Fprintf(w, "Dir:\t%s\n", run.OutDir)
	fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	fmt.Fprintf(w, "Took:\t%s\n\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	fmt.Fprintln(w, "PROJECT\tFILE\tSTATUS\tATTEMPTS\tDETAIL")
	for _, it := range run.Items {
		detail := it.Path
		if it.Status == domain.StatusFailed {
			detail = fmt.Sprintf("%s (%s)", it.Error, it.Link)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\n", it.ProjectID, it.FileID, it.Status, it.Attempts, detail)
	}
}
