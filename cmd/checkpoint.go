package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Show or clear the resume checkpoint",
	Long: `An interrupted sync keeps the IDs of the assets it finished in a
checkpoint. "sync --resume" skips them.`,
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show how many assets the checkpoint holds",
	RunE:  runCheckpointShow,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint",
	RunE:  runCheckpointClear,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)

	checkpointShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// CheckpointResult is the JSON form of checkpoint show.
type CheckpointResult struct {
	Assets    int        `json:"assets"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
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

	info, err := store.CheckpointInfo(ctx)
	if err != nil {
		return fmt.Errorf("could not read checkpoint: %w", err)
	}

	result := CheckpointResult{Assets: info.Count}
	if !info.UpdatedAt.IsZero() {
		result.UpdatedAt = &info.UpdatedAt
	}
	if jsonOutput {
		return outputJSON(result)
	}

	if info.Count == 0 {
		fmt.Println("No checkpoint.")
		return nil
	}
	fmt.Printf("Checkpoint holds %d assets (last saved %s ago)\n",
		info.Count, formatDuration(time.Since(info.UpdatedAt)))
	fmt.Println("Run \"sync --resume\" to skip them or \"checkpoint clear\" to start over.")
	return nil
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
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

	if err := store.ClearCheckpoint(ctx); err != nil {
		return fmt.Errorf("could not clear checkpoint: %w", err)
	}
	fmt.Println("Checkpoint cleared.")
	return nil
}
