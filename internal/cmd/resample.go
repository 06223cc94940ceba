package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/MeKo-Tech/trackmap/internal/worker"
	"github.com/paulmach/orb/project"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resampleCmd = &cobra.Command{
	Use:   "resample [files...]",
	Short: "Resample trajectory files to evenly spaced waypoints",
	Long: `Resample reads trajectory files, resamples each one to waypoints a fixed
distance apart and writes the waypoints and the path as GeoJSON into the
output directory.`,
	RunE: runResample,
}

func init() {
	rootCmd.AddCommand(resampleCmd)

	resampleCmd.Flags().StringSliceP("input", "i", nil, "Trajectory files (repeatable, in addition to arguments)")
	resampleCmd.Flags().Float64("step", track.DefaultStep, "Resampling step in meters (0 keeps the raw vertices)")
	resampleCmd.Flags().String("output-dir", "./resampled", "Output directory for GeoJSON files")
	resampleCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	resampleCmd.Flags().Bool("progress", true, "Show progress bar")
	resampleCmd.Flags().Bool("force", false, "Overwrite existing output files")
	resampleCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some files fail")

	bindFlags(resampleCmd, map[string]string{
		"resample.input":          "input",
		"resample.step":           "step",
		"resample.output_dir":     "output-dir",
		"resample.workers":        "workers",
		"resample.progress":       "progress",
		"resample.force":          "force",
		"resample.allow_failures": "allow-failures",
	})
}

func runResample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	inputs := append(viper.GetStringSlice("resample.input"), args...)
	if len(inputs) == 0 {
		return fmt.Errorf("no input files given")
	}
	force := viper.GetBool("resample.force")
	allowFailures := viper.GetBool("resample.allow_failures")

	workers := cfg.Resample.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if err := os.MkdirAll(cfg.Resample.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Info("Starting resampling",
		"files", len(inputs),
		"step", cfg.Resample.Step,
		"workers", workers,
		"output_dir", cfg.Resample.OutputDir,
	)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	tasks := make([]worker.Task, 0, len(inputs))
	for _, in := range inputs {
		tasks = append(tasks, worker.Task{Input: in, Step: cfg.Resample.Step})
	}

	var status io.Writer
	if cfg.Resample.Progress {
		status = os.Stderr
	}
	progress := worker.NewProgress(len(tasks), status)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Processor:  &resampler{outputDir: cfg.Resample.OutputDir, force: force},
		OnProgress: progress.Record,
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Resampling failed", "input", r.Task.Input, "error", r.Err)
			continue
		}
		logger.Debug("Track resampled",
			"input", r.Task.Input,
			"output", r.Output.Path,
			"waypoints", r.Output.Waypoints,
			"elapsed", r.Elapsed)
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		if allowFailures {
			logger.Warn("Some files failed to resample, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d files failed to resample", failedCount)
	}
	return nil
}

// resampler writes <output-dir>/<name>.geojson for every input file: the
// resampled waypoints as points followed by the raw path.
type resampler struct {
	outputDir string
	force     bool
}

func (r *resampler) Process(ctx context.Context, task worker.Task) (worker.Output, error) {
	name := strings.TrimSuffix(filepath.Base(task.Input), filepath.Ext(task.Input))
	out := filepath.Join(r.outputDir, name+".geojson")

	if !r.force {
		if _, err := os.Stat(out); err == nil {
			return worker.Output{Path: out}, fmt.Errorf("output %s exists (use --force to overwrite)", out)
		}
	}

	t, err := source.Load(task.Input)
	if err != nil {
		return worker.Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return worker.Output{}, err
	}

	data, err := track.Resample(t.Segments, task.Step, nil, project.WGS84.ToMercator)
	if err != nil {
		return worker.Output{}, fmt.Errorf("failed to resample %s: %w", task.Input, err)
	}

	fc := trackgeojson.FromWaypoints(data)
	path, err := trackgeojson.FromTrack(t, nil)
	if err != nil {
		return worker.Output{}, err
	}
	for _, f := range path.Features {
		f.Properties["step"] = task.Step
		fc.Append(f)
	}

	encoded, err := trackgeojson.Marshal(fc)
	if err != nil {
		return worker.Output{}, err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return worker.Output{}, fmt.Errorf("failed to write %s: %w", out, err)
	}

	return worker.Output{Path: out, Waypoints: len(data)}, nil
}
