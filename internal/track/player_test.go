package track

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/mapview"
	"github.com/MeKo-Tech/trackmap/internal/popup"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	interval  time.Duration
	fn        func()
	cancelled bool
}

// manualScheduler fires ticks only when Tick is called.
type manualScheduler struct {
	tickers []*manualTicker
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) func() {
	t := &manualTicker{interval: interval, fn: fn}
	s.tickers = append(s.tickers, t)
	return func() { t.cancelled = true }
}

func (s *manualScheduler) Tick() {
	for _, t := range slices.Clone(s.tickers) {
		if !t.cancelled {
			t.fn()
		}
	}
}

func (s *manualScheduler) running() []*manualTicker {
	var out []*manualTicker
	for _, t := range s.tickers {
		if !t.cancelled {
			out = append(out, t)
		}
	}
	return out
}

type playerFixture struct {
	m      *mapview.Headless
	c      *popup.Coordinator
	stores *Stores
	sched  *manualScheduler
	p      *Player
}

func newPlayerFixture(t *testing.T) *playerFixture {
	t.Helper()
	m := mapview.NewHeadless(mapview.HeadlessOptions{
		Width: 800, Height: 800, Center: orb.Point{0, 0.5}, Zoom: 8,
	})
	c, err := popup.New(m)
	require.NoError(t, err)

	stores, err := NewStores(StoresOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Pool().Add(stores.Player))

	sched := &manualScheduler{}
	p, err := NewPlayer(stores, m, Options{Scheduler: sched})
	require.NoError(t, err)
	return &playerFixture{m: m, c: c, stores: stores, sched: sched, p: p}
}

func lngLat(pts ...[2]float64) []feature.Attributes {
	out := make([]feature.Attributes, len(pts))
	for i, p := range pts {
		out[i] = feature.Attributes{"lng": p[0], "lat": p[1], "n": i}
	}
	return out
}

func TestNewPlayer_Validation(t *testing.T) {
	m := mapview.NewHeadless(mapview.HeadlessOptions{})
	stores, err := NewStores(StoresOptions{})
	require.NoError(t, err)

	_, err = NewPlayer(stores, m, Options{Scheduler: &manualScheduler{}})
	assert.ErrorIs(t, err, feature.ErrNotActive)

	c, err := popup.New(m)
	require.NoError(t, err)
	require.NoError(t, c.Pool().Add(stores.Player))

	_, err = NewPlayer(stores, m, Options{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewPlayer(nil, m, Options{Scheduler: &manualScheduler{}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p, err := NewPlayer(stores, m, Options{Scheduler: &manualScheduler{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.Equal(t, Forward, p.PlayType())
	assert.Equal(t, -1, p.Max())
}

func TestPlayer_SetTrackWithoutSmoothing(t *testing.T) {
	fx := newPlayerFixture(t)

	var change Change
	fx.p.On(EventChanged, func(e *event.Event) { change = e.Data.(Change) })

	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}), 0)))

	data := fx.p.Data()
	require.Len(t, data, 2)
	for i, wp := range data {
		assert.InDelta(t, 0, wp.Heading, 1e-12, "waypoint %d heads north", i)
		assert.Equal(t, i, wp.Attributes["n"])
	}

	require.NotNil(t, change.Line)
	require.NotNil(t, change.Start)
	require.NotNil(t, change.End)
	require.NotNil(t, change.Active)
	assert.Equal(t, data[0].Coordinate, change.Start.Geometry())
	assert.Equal(t, data[1].Coordinate, change.End.Geometry())
	assert.Equal(t, "bus", change.Active.Attributes().String(AttrType))
	assert.IsType(t, orb.MultiLineString{}, change.Line.Geometry())

	require.NoError(t, fx.p.SetIndex(5))
	assert.Equal(t, 1, fx.p.Index())
	assert.Equal(t, 100.0, fx.p.Percent())
}

func TestPlayer_SetTrackRejectsInvalidInput(t *testing.T) {
	fx := newPlayerFixture(t)

	tests := []struct {
		name  string
		track Track
	}{
		{"no segments", Track{}},
		{"empty segment", Track{Segments: [][]feature.Attributes{{}}}},
		{"negative step", Single("x", lngLat([2]float64{0, 0}), -1)},
		{"NaN step", Single("x", lngLat([2]float64{0, 0}), math.NaN())},
		{"missing coordinates", Single("x", []feature.Attributes{{"lat": 1.0}}, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, fx.p.SetTrack(tt.track), ErrInvalidTrack)
		})
	}
	assert.Equal(t, 0, fx.p.Len())
	assert.Empty(t, fx.stores.Player.Features())
}

func TestPlayer_ActiveMarkerIsUpdated(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1}), 0)))

	var adds, updates int
	fx.stores.Player.On(feature.EventAdd, func(*event.Event) { adds++ })
	fx.stores.Player.On(feature.EventUpdate, func(*event.Event) { updates++ })
	var indexes []int
	fx.p.On(EventIndexChanged, func(e *event.Event) { indexes = append(indexes, e.Data.(int)) })

	require.NoError(t, fx.p.Forward())
	require.NoError(t, fx.p.Forward())

	assert.Equal(t, 0, adds)
	assert.Equal(t, 2, updates)
	assert.Equal(t, []int{1, 2}, indexes)

	active, ok := fx.p.Marker(KindActive)
	require.True(t, ok)
	data := fx.p.Data()
	assert.Equal(t, data[2].Coordinate, active.Geometry())
	assert.Equal(t, 2, active.Attributes()["n"])
	assert.InDelta(t, math.Pi/2, active.Attributes()[AttrHeading].(float64), 1e-9)
}

func TestPlayer_ForwardClampsAtEnd(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 0.001}), 20)))

	n := fx.p.Len()
	for i := 0; i < n+3; i++ {
		require.NoError(t, fx.p.Forward())
	}
	assert.Equal(t, n-1, fx.p.Index())

	require.NoError(t, fx.p.SetIndex(-4))
	assert.Equal(t, 0, fx.p.Index())
	assert.Equal(t, 0.0, fx.p.Percent())
}

func TestPlayer_PlayAutoPausesAtEnd(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1}), 0)))

	require.NoError(t, fx.p.Play())
	assert.True(t, fx.p.Playing())
	require.Len(t, fx.sched.running(), 1)
	assert.Equal(t, DefaultInterval, fx.sched.running()[0].interval)

	fx.sched.Tick()
	assert.Equal(t, 1, fx.p.Index())
	assert.True(t, fx.p.Playing())

	fx.sched.Tick()
	assert.Equal(t, 2, fx.p.Index())
	assert.False(t, fx.p.Playing())
	assert.Empty(t, fx.sched.running())

	fx.sched.Tick()
	assert.Equal(t, 2, fx.p.Index())
}

func TestPlayer_PlayBackward(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1}), 0)))
	require.NoError(t, fx.p.SetIndex(2))

	require.NoError(t, fx.p.SetPlayType(Backward))
	require.NoError(t, fx.p.Play())
	fx.sched.Tick()
	fx.sched.Tick()

	assert.Equal(t, 0, fx.p.Index())
	assert.False(t, fx.p.Playing())
}

func TestPlayer_SettingsRestartRunningTimer(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}, [2]float64{1, 1}), 0)))

	require.NoError(t, fx.p.SetInterval(10*time.Millisecond))
	assert.Empty(t, fx.sched.running(), "paused player does not start a timer")

	require.NoError(t, fx.p.Play())
	require.NoError(t, fx.p.SetInterval(20*time.Millisecond))
	running := fx.sched.running()
	require.Len(t, running, 1)
	assert.Equal(t, 20*time.Millisecond, running[0].interval)
	assert.Len(t, fx.sched.tickers, 2)

	require.NoError(t, fx.p.SetPlayType(Backward))
	assert.Len(t, fx.sched.running(), 1)
	assert.Len(t, fx.sched.tickers, 3)

	assert.ErrorIs(t, fx.p.SetInterval(0), ErrInvalidArgument)
	assert.ErrorIs(t, fx.p.SetPlayType(PlayType(7)), ErrInvalidArgument)

	fx.p.Pause()
	fx.p.Pause()
	assert.False(t, fx.p.Playing())
	assert.Empty(t, fx.sched.running())
}

func TestPlayer_Clear(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}), 0)))
	require.NoError(t, fx.p.Play())

	var cleared int
	fx.p.On(EventClear, func(*event.Event) { cleared++ })

	require.NoError(t, fx.p.Clear())
	assert.Equal(t, 1, cleared)
	assert.False(t, fx.p.Playing())
	assert.Equal(t, 0, fx.p.Len())
	assert.Empty(t, fx.stores.Line.Features())
	assert.Empty(t, fx.stores.Point.Features())
	assert.ErrorIs(t, fx.p.Play(), ErrNoTrack)
	assert.ErrorIs(t, fx.p.SetIndex(0), ErrNoTrack)

	require.NoError(t, fx.p.Clear())
	assert.Equal(t, 2, cleared)
}

func TestPlayer_SetTrackReplacesPrevious(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("a", lngLat([2]float64{0, 0}, [2]float64{0, 1}), 0)))
	require.NoError(t, fx.p.SetIndex(1))

	var cleared int
	fx.p.On(EventClear, func(*event.Event) { cleared++ })

	require.NoError(t, fx.p.SetTrack(Single("b", lngLat([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3}), 0)))
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 0, fx.p.Index())
	assert.Equal(t, 3, fx.p.Len())
	assert.Equal(t, "b", fx.p.Type())
	assert.Len(t, fx.stores.Point.Features(), 3)
	assert.Len(t, fx.stores.Line.Features(), 1)
}

func TestPlayer_SeekTiesResolveToLowestIndex(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("loop", lngLat(
		[2]float64{0, 0}, [2]float64{0, 1}, [2]float64{0, 0},
	), 0)))

	i, err := fx.p.Seek(fx.m.FromGeodetic(orb.Point{0.01, 0}))
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	i, err = fx.p.Seek(fx.m.FromGeodetic(orb.Point{0, 0.9}))
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1, fx.p.Index())
}

func TestPlayer_ClickOnPathSeeks(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}), 100)))

	e := fx.m.ClickCoordinate(fx.m.FromGeodetic(orb.Point{0, 0.5}))
	assert.True(t, e.Has(mapview.FlagTrackIndexChanged))
	assert.False(t, e.Has(mapview.FlagInfoWindowOpened))

	want, err := fx.p.Nearest(fx.m.FromGeodetic(orb.Point{0, 0.5}))
	require.NoError(t, err)
	assert.Equal(t, want, fx.p.Index())
	assert.Greater(t, fx.p.Index(), 0)

	e = fx.m.ClickCoordinate(fx.m.FromGeodetic(orb.Point{1, 0.5}))
	assert.False(t, e.Has(mapview.FlagTrackIndexChanged))
}

func TestPlayer_ComposedIDs(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.p.SetTrack(Single("bus", lngLat([2]float64{0, 0}, [2]float64{0, 1}), 0)))

	id, err := fx.stores.Player.FeatureID(feature.Attributes{AttrKind: string(KindLine)})
	require.NoError(t, err)
	assert.Equal(t, DefaultLineType+"#"+string(KindLine), id)

	id, err = fx.stores.Player.FeatureID(feature.Attributes{AttrKind: string(KindActive)})
	require.NoError(t, err)
	assert.Equal(t, DefaultPointType+"#"+string(KindActive), id)
	assert.True(t, fx.stores.Player.HasFeature(id))
}
