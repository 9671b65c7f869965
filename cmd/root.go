package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	captureDir string
	logLevel   string
	logFormat  string
)

var (
	logger    = zerolog.Nop()
	logCloser io.Closer
	logBuffer = logging.NewRingBuffer(logging.DefaultBufferLines)
)

var rootCmd = &cobra.Command{
	Use:   "immich-metasync",
	Short: "Write Immich metadata into photo and video files",
	Long: `immich-metasync reads people, locations, captions, capture times,
ratings, albums and face regions from an Immich server and writes them
into the EXIF, XMP and IPTC tags of the original files.

Files are only rewritten when their embedded metadata differs from what
Immich knows, so repeated runs are cheap.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (.env, .yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides IMMICH_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides IMMICH_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save API responses for testing")
}

func initConfig() {
	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig loads and validates the configuration, applying the logging flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging builds the shared logger from the environment and flags.
func setupLogging() error {
	cfg := config.Load()
	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	l, closer, err := logging.New(logging.Options{
		Level:  level,
		Format: format,
		File:   cfg.Log.File,
		Buffer: logBuffer,
	})
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	logger, logCloser = l, closer
	return nil
}
