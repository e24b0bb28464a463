package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vsub/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pruneOlderThan time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				con := newConsole(cmd.OutOrStdout())
				out := con.out
				if store == nil {
					fmt.Fprintln(out, "Run history is disabled (paths.ledger_path is empty)")
					return nil
				}
				if pruneOlderThan > 0 {
					n, err := store.Prune(cmd.Context(), time.Now().Add(-pruneOlderThan))
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Pruned %d runs\n", n)
				}

				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						shortID(r.ID),
						formatTime(r.StartedAt),
						con.state(string(r.Status), r.Status == ledger.StatusSucceeded),
						r.Engine,
						fmt.Sprint(r.SegmentCount),
						fmt.Sprint(r.MergedCount),
						formatDuration(r.Duration()),
						r.SourcePath,
					})
				}
				con.table([]string{"Run", "Started", "Status", "Engine", "Segments", "Entries", "Time", "Source"}, rows, 4, 5, 6)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().DurationVar(&pruneOlderThan, "prune-older-than", 0, "Delete finished runs older than this age first (e.g. 720h)")
	return cmd
}
