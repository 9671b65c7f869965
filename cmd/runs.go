package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/constants"
	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().Int("limit", constants.DefaultRunsLimit, "Number of runs to show")
	runsCmd.Flags().Bool("json", false, "Output as JSON")
}

// RunSummary is the JSON form of one listed run.
type RunSummary struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	DryRun     bool           `json:"dry_run"`
	Categories []string       `json:"categories"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Error      string         `json:"error,omitempty"`
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	now := time.Now()
	if jsonOutput {
		out := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			out = append(out, RunSummary{
				ID:         r.ID,
				Status:     string(r.Status),
				DryRun:     r.DryRun,
				Categories: r.Categories,
				StartedAt:  r.StartedAt,
				DurationMs: r.Duration(now).Milliseconds(),
				Total:      r.Total,
				Counts:     r.Counts,
				Error:      r.Error,
			})
		}
		return outputJSON(out)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tMODE\tCATEGORIES\tTOTAL\tUPDATED\tERRORS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			runMode(r),
			strings.Join(r.Categories, ","),
			r.Total,
			r.Counts["updated"]+r.Counts["simulated"],
			r.Counts["errors"],
			formatDuration(r.Duration(now)),
		)
	}
	return w.Flush()
}

func runMode(r database.Run) string {
	var parts []string
	if r.DryRun {
		parts = append(parts, "dry-run")
	}
	if r.Force {
		parts = append(parts, "force")
	}
	if r.OnlyNew {
		parts = append(parts, "only-new")
	}
	if len(parts) == 0 {
		return "write"
	}
	return strings.Join(parts, "+")
}
