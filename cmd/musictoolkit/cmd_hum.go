package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ykzou1214/musictoolkit/internal/pipeline"
)

var (
	humStyle   string
	humNoScore bool
)

var humCmd = &cobra.Command{
	Use:   "hum <wav-file>",
	Short: "Generate a music track from a hummed melody",
	Args:  cobra.ExactArgs(1),
	RunE:  runHum,
}

func init() {
	humCmd.Flags().StringVar(&humStyle, "style", "", "Style prompt for the generated track")
	humCmd.Flags().BoolVar(&humNoScore, "no-score", false, "Skip producing a score of the generated track")
}

func runHum(cmd *cobra.Command, args []string) error {
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.DefaultHummingOptions()
	opts.StylePrompt = humStyle
	opts.GenerateScore = !humNoScore

	result, err := orch.GenerateMusicFromHumming(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}

	if result.Score != nil {
		result.Score.SVG = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Track: %s\n", result.TrackPath)
	return nil
}
