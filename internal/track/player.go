package track

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/geo"
	"github.com/MeKo-Tech/trackmap/internal/mapview"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// DefaultInterval is the playback tick interval.
const DefaultInterval = 50 * time.Millisecond

// Scheduler runs fn every interval until the returned cancel function is
// called. Cancel must be idempotent and must suppress ticks that have not
// started yet. eventloop.Loop satisfies it.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// Options configures a Player. Scheduler is required.
type Options struct {
	Interval    time.Duration
	Scheduler   Scheduler
	Coordinates CoordinatesFunc
	Logger      *slog.Logger
}

// Player plays a trajectory back by moving the active marker along a
// resampled dataset.
type Player struct {
	event.Registry

	stores    *Stores
	m         mapview.Map
	scheduler Scheduler
	coords    CoordinatesFunc
	logger    *slog.Logger
	clickKey  event.Key

	typ      string
	data     []Waypoint
	path     orb.MultiLineString
	index    int
	playType PlayType
	interval time.Duration
	cancel   func()
}

// NewPlayer creates a player writing into stores, which must already be
// active. Clicks on the path layer seek to the nearest waypoint.
func NewPlayer(stores *Stores, m mapview.Map, opts Options) (*Player, error) {
	if stores == nil || stores.Player == nil {
		return nil, fmt.Errorf("%w: stores are required", ErrInvalidArgument)
	}
	if !stores.Player.Active() {
		return nil, fmt.Errorf("failed to create player for %q: %w", stores.Player.Type(), feature.ErrNotActive)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: map is required", ErrInvalidArgument)
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("%w: scheduler is required", ErrInvalidArgument)
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("%w: negative interval %s", ErrInvalidArgument, opts.Interval)
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Coordinates == nil {
		opts.Coordinates = DefaultCoordinates
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Player{
		stores:    stores,
		m:         m,
		scheduler: opts.Scheduler,
		coords:    opts.Coordinates,
		logger:    opts.Logger,
		interval:  opts.Interval,
	}
	p.Init(p)
	p.clickKey = m.OnSingleClick(p.handleClick)
	return p, nil
}

// Detach stops playback and unregisters the click handler.
func (p *Player) Detach() {
	p.Pause()
	p.m.Off(mapview.EventSingleClick, p.clickKey)
}

// Stores returns the stores the player writes into.
func (p *Player) Stores() *Stores { return p.stores }

// SetTrack replaces the current trajectory. Prior playback is cleared, the
// path and its markers are added and EventChanged is dispatched. The index
// starts at 0.
func (p *Player) SetTrack(t Track) error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidTrack)
	}
	if t.Step < 0 || math.IsNaN(t.Step) || math.IsInf(t.Step, 0) {
		return fmt.Errorf("%w: step must be a finite non-negative distance, got %v", ErrInvalidTrack, t.Step)
	}
	segs, err := resolve(t.Segments, p.coords, p.m.FromGeodetic)
	if err != nil {
		return fmt.Errorf("failed to read track: %w", err)
	}
	data := resample(segs, t.Step)

	if p.data != nil {
		if err := p.Clear(); err != nil {
			return err
		}
	}

	display := make(orb.MultiLineString, len(segs))
	geodetic := make(orb.MultiLineString, len(segs))
	for i, s := range segs {
		display[i] = s.display
		geodetic[i] = s.geodetic
	}

	line := feature.Attributes{
		AttrKind:     string(KindLine),
		AttrType:     t.Type,
		AttrPath:     display,
		AttrGeodetic: geodetic,
	}
	markers := []feature.Attributes{
		line,
		markerAttrs(KindStart, t.Type, data[0]),
		markerAttrs(KindEnd, t.Type, data[len(data)-1]),
		markerAttrs(KindActive, t.Type, data[0]),
	}

	store := p.stores.Player
	if err := store.HideLayer(); err != nil {
		return fmt.Errorf("failed to hide track layer: %w", err)
	}
	if err := store.Add(markers...); err != nil {
		return fmt.Errorf("failed to add track markers: %w", err)
	}
	if err := store.ShowLayer(); err != nil {
		return fmt.Errorf("failed to show track layer: %w", err)
	}

	p.typ = t.Type
	p.data = data
	p.path = geodetic
	p.index = 0

	p.logger.Info("Track loaded",
		"type", t.Type,
		"segments", len(segs),
		"waypoints", len(data),
		"length", geo.FormatLength(geo.PathLength(geodetic)))

	p.Dispatch(EventChanged, Change{
		Line:   p.marker(KindLine),
		Start:  p.marker(KindStart),
		End:    p.marker(KindEnd),
		Active: p.marker(KindActive),
	})
	return nil
}

func markerAttrs(kind Kind, typ string, wp Waypoint) feature.Attributes {
	return wp.Attributes.Merge(feature.Attributes{
		AttrKind:       string(kind),
		AttrType:       typ,
		AttrCoordinate: wp.Coordinate,
		AttrGeodetic:   wp.Geodetic,
		AttrHeading:    wp.Heading,
	})
}

func (p *Player) marker(kind Kind) *feature.Feature {
	s := p.stores.Point
	if kind == KindLine {
		s = p.stores.Line
	}
	f, _ := s.FeatureByID(string(kind))
	return f
}

// Marker returns one of the entities the player maintains.
func (p *Player) Marker(kind Kind) (*feature.Feature, bool) {
	f := p.marker(kind)
	return f, f != nil
}

// SetIndex moves the active marker to waypoint i. i is clamped to the
// dataset; reaching the first waypoint while playing backward, or the last
// while playing forward, pauses playback.
func (p *Player) SetIndex(i int) error {
	if len(p.data) == 0 {
		return ErrNoTrack
	}
	last := len(p.data) - 1
	switch {
	case i <= 0:
		i = 0
		if p.playType == Backward {
			p.Pause()
		}
	case i >= last:
		i = last
		if p.playType == Forward {
			p.Pause()
		}
	}

	if err := p.stores.Player.Update(markerAttrs(KindActive, p.typ, p.data[i])); err != nil {
		return fmt.Errorf("failed to move active marker: %w", err)
	}
	p.index = i
	p.Dispatch(EventIndexChanged, i)
	return nil
}

// Forward advances one waypoint.
func (p *Player) Forward() error {
	return p.SetIndex(p.index + 1)
}

// Backward steps back one waypoint.
func (p *Player) Backward() error {
	return p.SetIndex(p.index - 1)
}

// Play starts advancing in the current play type every interval. A running
// timer is restarted.
func (p *Player) Play() error {
	if len(p.data) == 0 {
		return ErrNoTrack
	}
	p.Pause()
	p.cancel = p.scheduler.Every(p.interval, p.tick)
	p.logger.Debug("Track playback started",
		"type", p.typ, "index", p.index, "playType", p.playType, "interval", p.interval)
	return nil
}

// Pause stops the timer. It is a no-op when not playing.
func (p *Player) Pause() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.logger.Debug("Track playback paused", "type", p.typ, "index", p.index)
}

func (p *Player) tick() {
	var err error
	if p.playType == Backward {
		err = p.Backward()
	} else {
		err = p.Forward()
	}
	if err != nil {
		p.logger.Warn("Track playback tick failed", "type", p.typ, "error", err)
		p.Pause()
	}
}

// SetInterval changes the tick interval, restarting a running timer.
func (p *Player) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidArgument, d)
	}
	p.interval = d
	return p.restart()
}

// SetPlayType changes the direction, restarting a running timer.
func (p *Player) SetPlayType(t PlayType) error {
	if t != Forward && t != Backward {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, t)
	}
	p.playType = t
	return p.restart()
}

func (p *Player) restart() error {
	if !p.Playing() {
		return nil
	}
	return p.Play()
}

// Clear stops playback, drops the dataset and removes the path and markers.
// EventClear is dispatched even when no track was loaded.
func (p *Player) Clear() error {
	p.Pause()
	p.data = nil
	p.path = nil
	p.index = 0
	p.typ = ""
	if err := p.stores.Player.Clear(); err != nil {
		return fmt.Errorf("failed to clear track stores: %w", err)
	}
	p.Dispatch(EventClear, nil)
	return nil
}

// Nearest returns the index of the waypoint closest to a display
// coordinate by geodetic distance. Ties resolve to the lowest index.
func (p *Player) Nearest(c orb.Point) (int, error) {
	if len(p.data) == 0 {
		return 0, ErrNoTrack
	}
	q := p.m.ToGeodetic(c)
	best, bestDist := 0, math.Inf(1)
	for i, wp := range p.data {
		if d := orbgeo.DistanceHaversine(q, wp.Geodetic); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// Seek moves the active marker to the waypoint nearest to a display
// coordinate and returns its index.
func (p *Player) Seek(c orb.Point) (int, error) {
	i, err := p.Nearest(c)
	if err != nil {
		return 0, err
	}
	return i, p.SetIndex(i)
}

func (p *Player) handleClick(e *mapview.PointerEvent) {
	if len(p.data) == 0 || e.Has(mapview.FlagInfoWindowOpened) {
		return
	}
	lineType := p.stores.Line.Type()
	hit := p.m.ForEachFeatureAtPixel(e.Pixel, func(feature.Renderable, feature.Layer) bool {
		return true
	}, func(l feature.Layer) bool {
		return l.LayerType() == lineType
	})
	if !hit {
		return
	}
	i, err := p.Seek(e.Coordinate)
	if err != nil {
		if !errors.Is(err, ErrNoTrack) {
			p.logger.Warn("Failed to seek track", "type", p.typ, "error", err)
		}
		return
	}
	e.Set(mapview.FlagTrackIndexChanged)
	p.logger.Debug("Track seeked by click", "type", p.typ, "index", i)
}

// Index returns the current waypoint index.
func (p *Player) Index() int { return p.index }

// Max returns the last valid index, or -1 without a track.
func (p *Player) Max() int { return len(p.data) - 1 }

// Len returns the number of waypoints.
func (p *Player) Len() int { return len(p.data) }

// Percent returns the playback progress in [0, 100].
func (p *Player) Percent() float64 {
	last := p.Max()
	if last <= 0 {
		return 0
	}
	return float64(p.index) / float64(last) * 100
}

// Playing reports whether the timer is running.
func (p *Player) Playing() bool { return p.cancel != nil }

// PlayType returns the playback direction.
func (p *Player) PlayType() PlayType { return p.playType }

// Interval returns the tick interval.
func (p *Player) Interval() time.Duration { return p.interval }

// Type returns the type of the loaded track.
func (p *Player) Type() string { return p.typ }

// Data returns a copy of the resampled dataset.
func (p *Player) Data() []Waypoint {
	return append([]Waypoint(nil), p.data...)
}

// Current returns the waypoint at the current index.
func (p *Player) Current() (Waypoint, bool) {
	if len(p.data) == 0 {
		return Waypoint{}, false
	}
	return p.data[p.index], true
}

// Path returns the lon/lat segments of the loaded track.
func (p *Player) Path() orb.MultiLineString {
	return p.path.Clone()
}
