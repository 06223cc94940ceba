package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/eventloop"
	"github.com/MeKo-Tech/trackmap/internal/geo"
	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/mapview"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a trajectory back on a headless map",
	Long: `Play resamples a trajectory, puts it on a headless map and moves the active
marker every interval, logging each waypoint until playback reaches the end
or the process is interrupted.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("input", "i", "", "Trajectory file (.yaml, .geojson, .shp)")
	playCmd.Flags().String("id", "", "Play a stored track from --db instead of a file")
	playCmd.Flags().Float64("step", track.DefaultStep, "Resampling step in meters (0 keeps the raw vertices)")
	playCmd.Flags().Duration("interval", track.DefaultInterval, "Playback tick interval")
	playCmd.Flags().Bool("backward", false, "Play from the end to the start")
	playCmd.Flags().String("seek", "", "Click the map at lon,lat before playing to seek to the nearest waypoint")
	playCmd.Flags().String("bbox", "", "Fit the view to minLon,minLat,maxLon,maxLat instead of the track")
	playCmd.Flags().String("snapshot", "", "Write the path and markers as GeoJSON when playback stops")
	playCmd.Flags().Int("width", 800, "Viewport width in pixels")
	playCmd.Flags().Int("height", 600, "Viewport height in pixels")

	bindFlags(playCmd, map[string]string{
		"play.input":    "input",
		"play.id":       "id",
		"play.step":     "step",
		"play.interval": "interval",
		"play.backward": "backward",
		"play.seek":     "seek",
		"play.bbox":     "bbox",
		"play.snapshot": "snapshot",
		"map.width":     "width",
		"map.height":    "height",
	})
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := viper.GetString("play.input")
	id := viper.GetString("play.id")
	seek := viper.GetString("play.seek")
	bbox := viper.GetString("play.bbox")
	snapshot := viper.GetString("play.snapshot")

	t, err := loadTrack(input, id, cfg.Store.DB)
	if err != nil {
		return err
	}
	t.Step = cfg.Play.Step

	loop := eventloop.New(logger)
	s, err := newSession(cfg, loop)
	if err != nil {
		return err
	}
	defer s.close()

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, stopping playback...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var setupErr error
	loop.Post(func() {
		if setupErr = startPlayback(s, t, seek, bbox, cancel); setupErr != nil {
			cancel()
		}
	})

	err = loop.Run(ctx)
	if setupErr != nil {
		return setupErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Playback stopped",
		"type", s.player.Type(),
		"index", s.player.Index(),
		"max", s.player.Max(),
		"percent", fmt.Sprintf("%.1f", s.player.Percent()))

	if snapshot != "" {
		if err := writeSnapshot(s, snapshot); err != nil {
			return err
		}
		logger.Info("Snapshot written", "output", snapshot)
	}
	return nil
}

// writeSnapshot writes the entities of the player stores in lon/lat.
func writeSnapshot(s *session, path string) error {
	fc := trackgeojson.FromFeatures(s.stores.Player.Features(), s.m.ToGeodetic)
	data, err := trackgeojson.Marshal(fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// startPlayback runs on the loop goroutine. done is called once playback
// paused itself at the end of the track.
func startPlayback(s *session, t track.Track, seek, bbox string, done func()) error {
	if err := s.load(t); err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	if bbox != "" {
		b, err := parseBBox(bbox)
		if err != nil {
			return fmt.Errorf("invalid bbox: %w", err)
		}
		s.m.Fit(orb.Bound{Min: s.m.FromGeodetic(b.Min), Max: s.m.FromGeodetic(b.Max)})
	}

	if s.player.PlayType() == track.Backward {
		if err := s.player.SetIndex(s.player.Max()); err != nil {
			return err
		}
	}

	if seek != "" {
		p, err := parsePoint(seek)
		if err != nil {
			return fmt.Errorf("invalid seek point: %w", err)
		}
		e := s.m.ClickCoordinate(s.m.FromGeodetic(p))
		if e.Has(mapview.FlagTrackIndexChanged) {
			logger.Info("Seeked to waypoint", "index", s.player.Index())
		} else {
			logger.Warn("Seek point is not on the track", "point", seek)
		}
	}

	s.player.On(track.EventIndexChanged, func(e *event.Event) {
		logWaypoint(s.player, e.Data.(int))
		if !s.player.Playing() {
			logger.Info("Reached the end of the track")
			done()
		}
	})
	s.player.On(track.EventClear, func(*event.Event) { done() })

	logger.Info("Starting playback",
		"type", s.player.Type(),
		"waypoints", s.player.Len(),
		"interval", s.player.Interval(),
		"direction", s.player.PlayType(),
		"length", geo.FormatLength(geo.PathLength(s.player.Path())))
	return s.player.Play()
}

func logWaypoint(p *track.Player, i int) {
	wp, ok := p.Current()
	if !ok {
		return
	}
	lon, lat := geo.FormatLonLat(wp.Geodetic, 1)
	logger.Info("Waypoint",
		"index", i,
		"percent", fmt.Sprintf("%.1f", p.Percent()),
		"lat", lat,
		"lon", lon,
		"heading", fmt.Sprintf("%.0f", wp.Heading*180/math.Pi))
}
