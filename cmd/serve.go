package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/constants"
	"github.com/kozaktomas/immich-metasync/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long: `Start the immich-metasync web dashboard.
The dashboard starts and cancels syncs, follows their progress and shows
the run history and recent log lines.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Println("Connecting to Immich...")
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := web.NewServer(cfg, web.Dependencies{
		Runner:   a.syncer,
		Runs:     a.store,
		API:      a.client,
		Exiftool: a.exif.Version,
		Logs:     logBuffer,
	}, logger)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSeconds*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
	}()

	fmt.Printf("Starting immich-metasync dashboard on http://%s\n", cfg.Web.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
