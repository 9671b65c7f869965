package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write Immich metadata into the original files",
	Long: `Sync metadata from Immich into the EXIF, XMP and IPTC tags of the
original files under IMMICH_PHOTO_DIR.

Each asset is compared with the tags already in its file and only
rewritten when something changed.

Examples:
  # Preview what would change for people, GPS, captions, times and ratings
  immich-metasync sync --all --dry-run

  # Write everything including album names and face regions
  immich-metasync sync --all --albums --face-coordinates

  # Only assets changed in Immich since the last successful run
  immich-metasync sync --all --only-new

  # Continue an interrupted run
  immich-metasync sync --all --resume

  # JSON output for scripting
  immich-metasync sync --gps --json`,
	RunE: runSync,
}

// categoryFlags maps the category flags onto metadata categories.
var categoryFlags = []struct {
	name     string
	category metadata.Category
	usage    string
}{
	{"people", metadata.CategoryPeople, "Sync people names"},
	{"gps", metadata.CategoryGPS, "Sync GPS coordinates and altitude"},
	{"caption", metadata.CategoryCaption, "Sync descriptions"},
	{"time", metadata.CategoryTime, "Sync capture date and time"},
	{"rating", metadata.CategoryRating, "Sync star ratings and favorites"},
	{"albums", metadata.CategoryAlbums, "Sync album names"},
	{"face-coordinates", metadata.CategoryFaceCoordinates, "Sync face regions"},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("all", false, "Sync people, GPS, captions, times and ratings")
	for _, f := range categoryFlags {
		syncCmd.Flags().Bool(f.name, false, f.usage)
	}

	syncCmd.Flags().Bool("dry-run", false, "Compare only, do not write files")
	syncCmd.Flags().Bool("force", false, "Write without comparing with the current tags")
	syncCmd.Flags().Bool("only-new", false, "Only assets updated since the last successful run")
	syncCmd.Flags().Bool("resume", false, "Skip assets finished by an interrupted run")
	syncCmd.Flags().Bool("clear-checkpoint", false, "Forget the checkpoint before starting")
	syncCmd.Flags().String("export-stats", "", "Write run statistics to this file (a name is generated when no value is given)")
	syncCmd.Flags().Lookup("export-stats").NoOptDefVal = "auto"
	syncCmd.Flags().String("stats-format", syncer.FormatJSON, "Statistics format: json or csv")
	syncCmd.Flags().Int("concurrency", 0, "Number of parallel workers (default SYNC_CONCURRENCY)")
	syncCmd.Flags().Int("limit", 0, "Limit number of assets (0 = no limit)")
	syncCmd.Flags().Bool("with-archived", false, "Include archived assets")
	syncCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// selectedCategories returns the categories enabled by the command flags.
func selectedCategories(cmd *cobra.Command) metadata.CategorySet {
	set := metadata.NewCategorySet()
	if mustGetBool(cmd, "all") {
		for _, c := range metadata.DefaultCategories {
			set[c] = struct{}{}
		}
	}
	for _, f := range categoryFlags {
		if mustGetBool(cmd, f.name) {
			set[f.category] = struct{}{}
		}
	}
	return set
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSync(cmd *cobra.Command, args []string) error {
	categories := selectedCategories(cmd)
	if len(categories) == 0 {
		return errors.New("select at least one category (--all, --people, --gps, --caption, --time, --rating, --albums, --face-coordinates)")
	}
	jsonOutput := mustGetBool(cmd, "json")
	exportPath := mustGetString(cmd, "export-stats")
	statsFormat := mustGetString(cmd, "stats-format")
	if statsFormat != syncer.FormatJSON && statsFormat != syncer.FormatCSV {
		return fmt.Errorf("unknown stats format %q", statsFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Sync.Concurrency
	}
	cfg.Sync.Concurrency = concurrency

	ctx, stop := signalContext()
	defer stop()

	if !jsonOutput {
		fmt.Println("Connecting to Immich...")
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if mustGetBool(cmd, "clear-checkpoint") {
		if err := a.store.ClearCheckpoint(ctx); err != nil {
			return fmt.Errorf("could not clear checkpoint: %w", err)
		}
		if !jsonOutput {
			fmt.Println("Checkpoint cleared")
		}
	}

	opts := syncer.Options{
		Categories:         categories,
		DryRun:             mustGetBool(cmd, "dry-run"),
		Force:              mustGetBool(cmd, "force"),
		OnlyNew:            mustGetBool(cmd, "only-new"),
		Resume:             mustGetBool(cmd, "resume"),
		WithArchived:       mustGetBool(cmd, "with-archived"),
		Concurrency:        concurrency,
		Limit:              mustGetInt(cmd, "limit"),
		PageSize:           cfg.Immich.PageSize,
		CaptionMaxLen:      cfg.Sync.CaptionMaxLen,
		CheckpointInterval: cfg.Sync.CheckpointInterval,
	}

	var (
		bar     *progressbar.ProgressBar
		barOnce sync.Once
	)
	if !jsonOutput {
		fmt.Printf("Syncing %v\n", categories.Strings())
		if opts.DryRun {
			fmt.Println("Dry run: no files will be written")
		}
		opts.OnProgress = func(info syncer.ProgressInfo) {
			if info.Phase != syncer.PhaseProcessing {
				return
			}
			// Workers report concurrently.
			barOnce.Do(func() {
				bar = progressbar.NewOptions(info.Total,
					progressbar.OptionSetDescription("Syncing metadata"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("assets"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			})
			bar.Add(1)
		}
	}

	stats, runErr := a.syncer.Run(ctx, opts)
	if bar != nil {
		fmt.Println()
	}
	if stats == nil {
		return runErr
	}

	if exportPath != "" {
		if exportPath == "auto" {
			exportPath = syncer.StatsFileName(statsFormat, time.Now())
		}
		if err := syncer.ExportStats(stats, exportPath, statsFormat); err != nil {
			logger.Error().Err(err).Str("file", exportPath).Msg("could not export stats")
		} else if !jsonOutput {
			fmt.Printf("Statistics written to %s\n", exportPath)
		}
	}

	if jsonOutput {
		if err := outputJSON(stats); err != nil {
			return err
		}
		return runErr
	}

	printSyncSummary(stats)
	for _, hint := range syncer.MountHints(stats, cfg.Immich.PhotoDir, cfg.Immich.PathSegments) {
		fmt.Printf("  hint: %s\n", hint)
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Println("\nInterrupted. Run again with --resume to continue.")
		return nil
	}
	return runErr
}

// printSyncSummary prints the human-readable summary of a run.
func printSyncSummary(stats *syncer.Stats) {
	if stats.DryRun {
		fmt.Println("\nDry run complete!")
	} else {
		fmt.Println("\nSync complete!")
	}
	fmt.Printf("  Assets:          %d\n", stats.Total)
	if stats.Resumed > 0 {
		fmt.Printf("  Resumed (skip):  %d\n", stats.Resumed)
	}
	fmt.Printf("  Updated:         %d\n", stats.Updated)
	if stats.DryRun {
		fmt.Printf("  Would update:    %d\n", stats.Simulated)
	}
	fmt.Printf("  Unchanged:       %d\n", stats.Skipped)
	if stats.FileNotFound > 0 {
		fmt.Printf("  File not found:  %d\n", stats.FileNotFound)
	}
	if stats.PathMismatch > 0 {
		fmt.Printf("  Path mismatch:   %d\n", stats.PathMismatch)
	}
	if stats.Errors > 0 {
		fmt.Printf("  Errors:          %d\n", stats.Errors)
	}
	for _, c := range metadata.AllCategories {
		if n := stats.CategoryChanges[string(c)]; n > 0 {
			fmt.Printf("  %-16s %d\n", string(c)+":", n)
		}
	}
	fmt.Printf("  Duration:        %s\n", formatDuration(stats.FinishedAt.Sub(stats.StartedAt)))

	for _, f := range stats.Failures {
		fmt.Printf("  ! %s %s: %s\n", f.AssetID, f.Status, f.Error)
	}
}
