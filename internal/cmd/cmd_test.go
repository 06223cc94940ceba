package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/config"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/MeKo-Tech/trackmap/internal/trackstore"
	"github.com/MeKo-Tech/trackmap/internal/worker"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

// manualScheduler fires the registered callback only when tick is called.
type manualScheduler struct {
	fn  func()
	gen int
}

func (s *manualScheduler) Every(_ time.Duration, fn func()) func() {
	s.gen++
	gen := s.gen
	s.fn = fn
	return func() {
		if s.gen == gen {
			s.fn = nil
		}
	}
}

func (s *manualScheduler) tick() bool {
	if s.fn == nil {
		return false
	}
	s.fn()
	return true
}

func equatorTrack(n int) track.Track {
	seg := make([]feature.Attributes, n)
	for i := range seg {
		seg[i] = feature.Attributes{"lng": float64(i) * 0.001, "lat": 0.0, "seq": i}
	}
	return track.Single("bus", seg, 0)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestResampler_WritesGeoJSON(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "route.yaml")
	require.NoError(t, source.SaveYAML(input, equatorTrack(5)))

	r := &resampler{outputDir: dir}
	out, err := r.Process(t.Context(), worker.Task{Input: input, Step: 100})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "route.geojson"), out.Path)
	// 444 m at 100 m steps: 0, 100, 200, 300, 400 and the end
	assert.Equal(t, 6, out.Waypoints)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, out.Waypoints+1)
	assert.Equal(t, "MultiLineString", fc.Features[out.Waypoints].Geometry.GeoJSONType())

	_, err = r.Process(t.Context(), worker.Task{Input: input, Step: 100})
	assert.Error(t, err, "existing output without force")

	r.force = true
	_, err = r.Process(t.Context(), worker.Task{Input: input, Step: 100})
	assert.NoError(t, err)
}

func TestImportExport_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tracks.db")

	id, count, err := importTrack(db, equatorTrack(5), trackstore.Metadata{Name: "route"})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	out := filepath.Join(dir, "route.yaml")
	require.NoError(t, exportTrack(db, id, out, false))
	got, err := source.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "bus", got.Type)
	require.Len(t, got.Segments, 1)
	assert.Len(t, got.Segments[0], 5)

	wpOut := filepath.Join(dir, "waypoints.geojson")
	require.NoError(t, exportTrack(db, id, wpOut, true))
	data, err := os.ReadFile(wpOut)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 5)

	assert.Error(t, exportTrack(db, "missing", out, false))
}

func TestStartPlayback_SeekThenRunToEnd(t *testing.T) {
	sched := &manualScheduler{}
	s, err := newSession(testConfig(t), sched)
	require.NoError(t, err)
	defer s.close()

	done := 0
	require.NoError(t, startPlayback(s, equatorTrack(5), "0.002,0", "", func() { done++ }))
	assert.Equal(t, 2, s.player.Index())
	assert.True(t, s.player.Playing())

	ticks := 0
	for sched.tick() {
		ticks++
		require.Less(t, ticks, 10)
	}
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 4, s.player.Index())
	assert.Equal(t, 1, done)
	assert.False(t, s.player.Playing())
}

func TestWriteSnapshot(t *testing.T) {
	s, err := newSession(testConfig(t), &manualScheduler{})
	require.NoError(t, err)
	defer s.close()
	require.NoError(t, s.load(equatorTrack(3)))
	require.NoError(t, s.player.SetIndex(1))

	path := filepath.Join(t.TempDir(), "snapshot.geojson")
	require.NoError(t, writeSnapshot(s, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)

	kinds := map[string]bool{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString(track.AttrKind, "")] = true
		if f.Properties.MustString(trackgeojson.PropFeatureType, "") == "" {
			t.Errorf("Feature without type: %v", f.Properties)
		}
	}
	assert.Len(t, kinds, 4)

	for _, f := range fc.Features {
		if f.Properties.MustString(track.AttrKind, "") == string(track.KindActive) {
			p := f.Geometry.(orb.Point)
			assert.InDelta(t, 0.001, p[0], 1e-9)
		}
	}
}

func TestStartPlayback_Backward(t *testing.T) {
	sched := &manualScheduler{}
	cfg := testConfig(t)
	cfg.Play.Backward = true
	s, err := newSession(cfg, sched)
	require.NoError(t, err)
	defer s.close()

	done := 0
	require.NoError(t, startPlayback(s, equatorTrack(3), "", "-1,-1,1,1", func() { done++ }))
	assert.Equal(t, 2, s.player.Index())

	for sched.tick() {
	}
	assert.Equal(t, 0, s.player.Index())
	assert.Equal(t, 1, done)
}

func TestStartPlayback_InvalidInput(t *testing.T) {
	s, err := newSession(testConfig(t), &manualScheduler{})
	require.NoError(t, err)
	defer s.close()

	err = startPlayback(s, track.Track{}, "", "", func() {})
	assert.ErrorIs(t, err, track.ErrInvalidTrack)

	err = startPlayback(s, equatorTrack(2), "", "1,1,0,0", func() {})
	assert.Error(t, err)
}

func TestMarkerInfoWindow(t *testing.T) {
	sched := &manualScheduler{}
	s, err := newSession(testConfig(t), sched)
	require.NoError(t, err)
	defer s.close()
	require.NoError(t, s.load(equatorTrack(3)))

	start, ok := s.player.Marker(track.KindStart)
	require.True(t, ok)
	w, ok := markerInfoWindow(start)
	require.True(t, ok)
	assert.Contains(t, w.Template, "Start: N 0°0′0.00″")

	active, _ := s.player.Marker(track.KindActive)
	_, ok = markerInfoWindow(active)
	assert.False(t, ok)
}
