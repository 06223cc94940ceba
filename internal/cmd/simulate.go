package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic trajectory",
	Long: `Simulate writes a deterministic random walk whose bearing drifts with
Perlin noise. The same seed always produces the same trajectory.`,
	RunE: runSimulate,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch an OpenStreetMap way as a trajectory",
	Long: `Fetch queries the Overpass API for a way and writes its geometry, tagged
with the way's OSM tags, as a trajectory file.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(simulateCmd, fetchCmd)

	simulateCmd.Flags().Int64("seed", 1337, "Deterministic seed for the noise walk")
	simulateCmd.Flags().Int("points", 200, "Points per segment")
	simulateCmd.Flags().Int("segments", 1, "Number of segments")
	simulateCmd.Flags().String("start", "9.7320,52.3745", "Start point lon,lat")
	simulateCmd.Flags().Float64("step-meters", 25, "Distance between consecutive points")
	simulateCmd.Flags().Float64("wiggle", 40, "Bearing drift in degrees per step")
	simulateCmd.Flags().String("type", "simulated", "Track type")
	simulateCmd.Flags().StringP("output", "o", "simulated.yaml", "Output file (.yaml, .geojson, .shp)")

	fetchCmd.Flags().Int64("way-id", 0, "OSM way id")
	fetchCmd.Flags().String("endpoint", source.DefaultOverpassEndpoint, "Overpass API endpoint")
	fetchCmd.Flags().Duration("timeout", 2*time.Minute, "Request timeout")
	fetchCmd.Flags().StringP("output", "o", "", "Output file (.yaml, .geojson, .shp)")

	bindFlags(simulateCmd, map[string]string{
		"simulate.seed":        "seed",
		"simulate.points":      "points",
		"simulate.segments":    "segments",
		"simulate.start":       "start",
		"simulate.step_meters": "step-meters",
		"simulate.wiggle":      "wiggle",
		"simulate.type":        "type",
		"simulate.output":      "output",
	})
	bindFlags(fetchCmd, map[string]string{
		"overpass.endpoint": "endpoint",
		"fetch.way_id":      "way-id",
		"fetch.timeout":     "timeout",
		"fetch.output":      "output",
	})
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	start, err := parsePoint(viper.GetString("simulate.start"))
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	output := viper.GetString("simulate.output")

	t, err := source.Synthetic{
		Seed:       viper.GetInt64("simulate.seed"),
		Points:     viper.GetInt("simulate.points"),
		Segments:   viper.GetInt("simulate.segments"),
		Start:      start,
		StepMeters: viper.GetFloat64("simulate.step_meters"),
		Wiggle:     viper.GetFloat64("simulate.wiggle"),
	}.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate track: %w", err)
	}
	t.Type = viper.GetString("simulate.type")

	if err := source.Save(output, t); err != nil {
		return err
	}
	logger.Info("Synthetic track written", "output", output, "segments", len(t.Segments))
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := viper.GetInt64("fetch.way_id")
	output := viper.GetString("fetch.output")
	if id <= 0 {
		return fmt.Errorf("--way-id is required")
	}
	if output == "" {
		output = fmt.Sprintf("way_%d.yaml", id)
	}
	endpoint := cfg.Overpass.Endpoint

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("fetch.timeout"))
	defer cancel()

	logger.Info("Fetching way", "id", id, "endpoint", endpoint)
	t, err := source.NewOverpass(endpoint).FetchWay(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch way %d: %w", id, err)
	}

	if err := source.Save(output, t); err != nil {
		return err
	}
	logger.Info("Way written", "id", id, "output", output, "points", len(t.Segments[0]))
	return nil
}
