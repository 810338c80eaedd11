package main

import (
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shapedtime/cloudlib/internal/scan"
	"github.com/shapedtime/cloudlib/internal/scheduler"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one full scan of every configured root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rep, err := a.orchestrator.Run(sigCtx)
			if rep != nil {
				printReport(cmd.OutOrStdout(), rep)
			}
			if err != nil {
				return err
			}

			// Manual runs count toward the automatic scan interval.
			return a.store.Sync.SetLastRunTime(cmd.Context(), scheduler.RunKey, time.Now())
		},
	}
}

func newRescanShowCommand(ctx *commandContext) *cobra.Command {
	var thorough bool

	cmd := &cobra.Command{
		Use:   "rescan-show ID",
		Short: "Reconcile the episodes of one catalogued show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid show id %q", args[0])
			}

			a, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sr, err := a.orchestrator.RescanShow(sigCtx, showID, thorough)
			if err != nil {
				return err
			}
			printShowReport(cmd.OutOrStdout(), sr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&thorough, "thorough", false, "Reconcile even when the episode count is already complete")
	return cmd
}

func printReport(w io.Writer, rep *scan.Report) {
	fmt.Fprintf(w, "Run %s finished in %s\n", rep.RunID, rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  files listed:      %d (%d new)\n", rep.FilesListed, rep.NewFiles)
	fmt.Fprintf(w, "  movies:            %d matched, %d unresolved\n", rep.MoviesMatched, rep.MoviesUnresolved)
	fmt.Fprintf(w, "  show folders:      %d matched, %d unresolved\n", rep.ShowsMatched, rep.ShowsUnresolved)
	fmt.Fprintf(w, "  shows reconciled:  %d (%d skipped)\n", rep.ShowsReconciled, rep.ShowsSkipped)
	fmt.Fprintf(w, "  catalog writes:    %d created, %d updated, %d deleted\n", rep.Created, rep.Updated, rep.Deleted)
	fmt.Fprintf(w, "  conflicts:         %d (%d files deleted)\n", rep.Conflicts, rep.FilesDeleted)
	fmt.Fprintf(w, "  subtitles queued:  %d\n", rep.SubtitlesScheduled)
}

func printShowReport(w io.Writer, sr *scan.ShowReport) {
	if sr.Skipped != "" {
		fmt.Fprintf(w, "Show %d (%s) skipped: %s\n", sr.ShowID, sr.Name, sr.Skipped)
		return
	}
	fmt.Fprintf(w, "Show %d (%s)\n", sr.ShowID, sr.Name)
	fmt.Fprintf(w, "  episodes:   %d matched, %d placeholders, %d unmatched files\n", sr.Matched, sr.Placeholders, sr.Unmatched)
	fmt.Fprintf(w, "  writes:     %d created, %d updated, %d deleted\n", sr.Created, sr.Updated, sr.Deleted)
	fmt.Fprintf(w, "  conflicts:  %d (%d files deleted)\n", sr.Conflicts, sr.FilesDeleted)
}
