// musictoolkit is the main CLI: serve (HTTP API), mcp (stdio server),
// score (one-shot WAV to MusicXML), hum (one-shot humming to music).
//
// Usage:
//
//	musictoolkit serve [--config=<path>] [--output-dir=<path>]
//	musictoolkit mcp [--config=<path>] [--output-dir=<path>]
//	musictoolkit score <wav-file> [--no-svg]
//	musictoolkit hum <wav-file> [--style=<prompt>] [--no-score]
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ykzou1214/musictoolkit/internal/config"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

var (
	configPath string
	outputDir  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "musictoolkit",
	Short: "Audio to music score conversion and humming-driven music generation",
	Long: "MusicToolkit converts WAV recordings into MusicXML scores via pitch\n" +
		"detection and turns hummed melodies into produced tracks through a\n" +
		"melody-conditioned generation service.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables")
		}

		cfg = config.Load()
		if configPath != "" {
			if err := cfg.ApplyFile(configPath); err != nil {
				return err
			}
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}

		initSentry()
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		sentry.Flush(sentryFlushTimeout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config overlay")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Artifact output directory (overrides OUTPUT_DIR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(humCmd)
	rootCmd.Version = releaseVersion
}

func initSentry() {
	if cfg.SentryDSN == "" {
		log.Println("Sentry not configured (SENTRY_DSN not set)")
		return
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "musictoolkit@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Environment != environmentProduction,
	}); err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return
	}
	log.Printf("Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
