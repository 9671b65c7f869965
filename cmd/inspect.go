package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <asset-id>",
	Short: "Show desired and current metadata of one asset",
	Long: `Show what a sync would write for one asset, what the file currently
holds and where they differ. Nothing is written.

Examples:
  # All default categories
  immich-metasync inspect 6f0b3f6c-1d7a-4a55-9a53-5c9b1e0b6f1d

  # Include albums and face regions, as JSON
  immich-metasync inspect 6f0b3f6c-... --all --albums --face-coordinates --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("all", false, "Inspect people, GPS, captions, times and ratings")
	for _, f := range categoryFlags {
		inspectCmd.Flags().Bool(f.name, false, f.usage)
	}
	inspectCmd.Flags().Bool("json", false, "Output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	categories := selectedCategories(cmd)
	if len(categories) == 0 {
		categories = metadata.NewCategorySet(metadata.DefaultCategories...)
	}
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Sync.Concurrency = 1

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := a.syncer.Inspect(ctx, args[0], categories, cfg.Sync.CaptionMaxLen)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(in)
	}
	printInspection(in, cfg.Immich.AssetURL(in.AssetID))
	return nil
}

func printInspection(in *syncer.Inspection, link string) {
	fmt.Printf("Asset:    %s\n", link)
	fmt.Printf("Original: %s\n", in.Original)
	if in.PathError != "" {
		fmt.Printf("Local:    %s\n", in.PathError)
	} else {
		fmt.Printf("Local:    %s\n", in.Path)
	}
	fmt.Printf("Status:   %s\n", in.Status)
	if in.TimeChoice != nil {
		fmt.Printf("Time:     %s (from %s)\n", in.TimeChoice.Value, in.TimeChoice.Source)
	}
	for _, n := range in.Notes {
		fmt.Printf("Note:     %s\n", n)
	}
	if in.ReadError != "" {
		fmt.Printf("Read:     %s\n", in.ReadError)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nCATEGORY\tTAG\tDESIRED\tCURRENT")
	for _, c := range metadata.AllCategories {
		tags, ok := in.Desired[string(c)]
		if !ok {
			continue
		}
		names := make([]string, 0, len(tags))
		for name := range tags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			current := currentValue(in, c, name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c, name, truncate(tags[name], 60), truncate(current, 60))
		}
	}
	w.Flush()

	if len(in.Diffs) == 0 {
		fmt.Println("\nNo differences.")
		return
	}
	fmt.Println("\nDifferences:")
	for _, d := range in.Diffs {
		if d.Missing {
			fmt.Printf("  %s %s: missing, want %q\n", d.Category, d.Tag, d.Want)
			continue
		}
		fmt.Printf("  %s %s: %q -> %q\n", d.Category, d.Tag, d.Got, d.Want)
	}
}

// currentValue looks up the value the file holds for a write tag name.
func currentValue(in *syncer.Inspection, c metadata.Category, name string) string {
	for _, t := range metadata.CategoryTags[c] {
		if t.Name != name {
			continue
		}
		if !t.Comparable() {
			return "(not compared)"
		}
		if v, ok := in.Current[t.Key]; ok {
			return v
		}
	}
	return "-"
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
