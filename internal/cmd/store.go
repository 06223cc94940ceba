package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/MeKo-Tech/trackmap/internal/trackstore"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a trajectory file and its resampled waypoints in the track database",
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a stored track to a file (.yaml, .geojson, .shp)",
	Long: `Export writes the raw segments of a stored track to a file chosen by
extension. With --waypoints the stored playback dataset is written as
GeoJSON points instead.`,
	RunE: runExport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tracks in the track database",
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a track from the track database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd, listCmd, deleteCmd)

	importCmd.Flags().StringP("input", "i", "", "Trajectory file (.yaml, .geojson, .shp)")
	importCmd.Flags().String("name", "", "Track name (default: file name)")
	importCmd.Flags().String("description", "", "Track description")
	importCmd.Flags().Float64("step", track.DefaultStep, "Resampling step in meters for the stored waypoints")

	exportCmd.Flags().String("id", "", "Track id")
	exportCmd.Flags().StringP("output", "o", "", "Output file")
	exportCmd.Flags().Bool("waypoints", false, "Export the resampled waypoints as GeoJSON")

	bindFlags(importCmd, map[string]string{
		"import.input":       "input",
		"import.name":        "name",
		"import.description": "description",
		"import.step":        "step",
	})
	bindFlags(exportCmd, map[string]string{
		"export.id":        "id",
		"export.output":    "output",
		"export.waypoints": "waypoints",
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := viper.GetString("import.input")
	if input == "" {
		return fmt.Errorf("--input is required")
	}
	t, err := source.Load(input)
	if err != nil {
		return err
	}

	name := viper.GetString("import.name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}

	id, count, err := importTrack(cfg.Store.DB, t, trackstore.Metadata{
		Name:        name,
		Source:      input,
		Description: viper.GetString("import.description"),
		Step:        viper.GetFloat64("import.step"),
	})
	if err != nil {
		return err
	}

	logger.Info("Track imported", "id", id, "name", name, "db", cfg.Store.DB, "waypoints", count)
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// importTrack stores the raw segments of t and the dataset resampled at
// meta.Step. It returns the track id and the number of waypoints.
func importTrack(db string, t track.Track, meta trackstore.Metadata) (string, int, error) {
	data, err := track.Resample(t.Segments, meta.Step, nil, project.WGS84.ToMercator)
	if err != nil {
		return "", 0, fmt.Errorf("failed to resample track: %w", err)
	}

	var bound orb.Bound
	for i, wp := range data {
		if i == 0 {
			bound = wp.Geodetic.Bound()
			continue
		}
		bound = bound.Extend(wp.Geodetic)
	}
	meta.Type = t.Type
	meta.Bounds = [4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}

	w, err := trackstore.New(db)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open track database: %w", err)
	}
	defer w.Close()

	id, err := w.CreateTrack(meta)
	if err != nil {
		return "", 0, err
	}
	if err := w.WriteSegments(id, t.Segments, nil); err != nil {
		return "", 0, err
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	if err := w.WriteWaypoints(id, data); err != nil {
		return "", 0, err
	}
	return id, len(data), nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := viper.GetString("export.id")
	output := viper.GetString("export.output")
	if id == "" || output == "" {
		return fmt.Errorf("--id and --output are required")
	}

	if err := exportTrack(cfg.Store.DB, id, output, viper.GetBool("export.waypoints")); err != nil {
		return err
	}
	logger.Info("Track exported", "id", id, "output", output)
	return nil
}

func exportTrack(db, id, output string, waypoints bool) error {
	r, err := trackstore.OpenReader(db)
	if err != nil {
		return fmt.Errorf("failed to open track database: %w", err)
	}
	defer r.Close()

	if !waypoints {
		t, err := r.Track(id)
		if err != nil {
			return err
		}
		return source.Save(output, t)
	}

	data, err := r.Waypoints(id)
	if err != nil {
		return err
	}
	encoded, err := trackgeojson.Marshal(trackgeojson.FromWaypoints(data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := trackstore.OpenReader(cfg.Store.DB)
	if err != nil {
		return fmt.Errorf("failed to open track database: %w", err)
	}
	defer r.Close()

	infos, err := r.Tracks()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(out, "%s\t%s\t%s\t%d points\t%d waypoints\n",
			info.ID, info.Created.Format("2006-01-02 15:04"), info.Name, info.Points, info.Waypoints)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w, err := trackstore.New(cfg.Store.DB)
	if err != nil {
		return fmt.Errorf("failed to open track database: %w", err)
	}
	defer w.Close()

	if err := w.DeleteTrack(args[0]); err != nil {
		return err
	}
	logger.Info("Track deleted", "id", args[0])
	return nil
}
