package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/exif"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("immich-metasync %s\n", Version)
		fmt.Printf("  Commit:   %s\n", CommitSHA)
		fmt.Printf("  Built:    %s\n", BuildDate)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if v, err := exif.Version(ctx, config.Load().Exiftool.Binary); err == nil {
			fmt.Printf("  exiftool: %s\n", v)
		} else {
			fmt.Printf("  exiftool: not found\n")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
