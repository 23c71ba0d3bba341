package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ykzou1214/musictoolkit/internal/artifact"
	"github.com/ykzou1214/musictoolkit/internal/pipeline"
)

var (
	scoreNoSVG     bool
	scoreTimestamp string
)

var scoreCmd = &cobra.Command{
	Use:   "score <wav-file>",
	Short: "Convert a WAV recording into a MusicXML score",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreNoSVG, "no-svg", false, "Skip rendering the SVG image")
	scoreCmd.Flags().StringVar(&scoreTimestamp, "timestamp", "", "Artifact naming override ("+artifact.TimestampLayout+")")
}

func runScore(cmd *cobra.Command, args []string) error {
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.DefaultScoreOptions()
	opts.RenderSVG = !scoreNoSVG
	if scoreTimestamp != "" {
		ts, err := time.Parse(artifact.TimestampLayout, scoreTimestamp)
		if err != nil {
			return fmt.Errorf("timestamp must match %s", artifact.TimestampLayout)
		}
		opts.Timestamp = ts
	}

	result, err := orch.WavToMusicScore(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}

	// Inline SVG is redundant on the CLI; the path is printed instead.
	result.SVG = nil

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Score: %s\n", result.ScorePath)
	if result.ImagePath != "" {
		fmt.Fprintf(os.Stderr, "Image: %s\n", result.ImagePath)
	}
	return nil
}
