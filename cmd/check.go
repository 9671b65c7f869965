package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/exif"
	"github.com/kozaktomas/immich-metasync/internal/pathmap"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, Immich access, exiftool and the photo directory",
	Long: `Check that everything a sync needs is in place:

  - the configuration is valid
  - the Immich API answers with the configured key
  - exiftool can be started
  - the photo directory exists and is not empty`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Bool("json", false, "Output as JSON")
}

// CheckResult is one line of the check report.
type CheckResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	var results []CheckResult
	add := func(name string, err error, detail string) {
		if err != nil {
			detail = err.Error()
		}
		results = append(results, CheckResult{Name: name, OK: err == nil, Detail: detail})
	}

	cfg, err := loadConfig()
	add("config", err, "valid")
	if err != nil {
		return reportChecks(results, jsonOutput)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := newClient(ctx, cfg)
	if err == nil {
		version, verr := client.Version(ctx)
		if verr != nil {
			add("immich", nil, fmt.Sprintf("reachable at %s (prefix %q)", cfg.Immich.URL, client.Prefix()))
		} else {
			add("immich", nil, fmt.Sprintf("server %s at %s (prefix %q)", version, cfg.Immich.URL, client.Prefix()))
		}
	} else {
		add("immich", err, "")
	}

	version, err := exif.Version(ctx, cfg.Exiftool.Binary)
	add("exiftool", err, "version "+version)

	entries, err := pathmap.ValidateRoot(cfg.Immich.PhotoDir)
	add("photo dir", err, fmt.Sprintf("%s (%d entries, %d path segments stripped)", cfg.Immich.PhotoDir, entries, cfg.Immich.PathSegments))

	store, err := openStore(ctx, cfg)
	if err == nil {
		info, ierr := store.CheckpointInfo(ctx)
		detail := cfg.Database.Driver
		if ierr == nil && info.Count > 0 {
			detail = fmt.Sprintf("%s (checkpoint holds %d assets)", detail, info.Count)
		}
		add("state db", ierr, detail)
		store.Close()
	} else {
		add("state db", err, "")
	}

	return reportChecks(results, jsonOutput)
}

func reportChecks(results []CheckResult, jsonOutput bool) error {
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	if jsonOutput {
		if err := outputJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			mark := "ok  "
			if !r.OK {
				mark = "FAIL"
			}
			fmt.Printf("[%s] %-10s %s\n", mark, r.Name, r.Detail)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
