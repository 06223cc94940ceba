// Package popup keeps at most one map entity's popup open across all
// stores of a pool.
package popup

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/MeKo-Tech/trackmap/internal/mapview"
	"github.com/paulmach/orb"
)

// Event types dispatched by the coordinator.
const (
	EventOpen  = "OPEN_INFO_WINDOW"
	EventClose = "CLOSE_INFO_WINDOW"
)

// ClusterZoomStep is the zoom increment applied when a clicked cluster's
// members share one location.
const ClusterZoomStep = 2

var (
	// ErrNoInfoWindow is returned when the entity's store has no popup configured.
	ErrNoInfoWindow = errors.New("no info window configured")
	// ErrFeatureNotVisible is returned when opening a hidden entity.
	ErrFeatureNotVisible = errors.New("feature is not visible")
)

// OpenEvent is the payload of EventOpen. Closed is the entity whose popup
// was replaced, or nil.
type OpenEvent struct {
	Opened *feature.Feature
	Closed *feature.Feature
}

// Anchor describes where the open popup sits.
type Anchor struct {
	Position    orb.Point
	Offset      infowindow.Offset
	Positioning infowindow.Positioning
}

// Coordinator tracks the single open popup and wires map clicks and
// pointer moves to the stores of its pool.
type Coordinator struct {
	event.Registry

	m      mapview.Map
	pool   *feature.Pool
	logger *slog.Logger

	open     *feature.Feature
	window   infowindow.InfoWindow
	position *orb.Point
	hover    *feature.Feature

	clickKey event.Key
	moveKey  event.Key
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator bound to m, together with its store pool.
func New(m mapview.Map, opts ...Option) (*Coordinator, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: map is required", feature.ErrInvalidArgument)
	}
	c := &Coordinator{m: m}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.Init(c)
	c.pool = feature.NewPool(c)
	c.clickKey = m.OnSingleClick(c.handleClick)
	c.moveKey = m.OnPointerMove(c.handleMove)
	return c, nil
}

// Pool returns the store pool bound to this coordinator.
func (c *Coordinator) Pool() *feature.Pool { return c.pool }

// Map returns the map the coordinator listens to.
func (c *Coordinator) Map() mapview.Map { return c.m }

// AddLayer adds a store layer to the map.
func (c *Coordinator) AddLayer(l feature.Layer) {
	c.m.AddLayer(l)
}

// Detach stops listening to map pointer events.
func (c *Coordinator) Detach() {
	c.m.Off(mapview.EventSingleClick, c.clickKey)
	c.m.Off(mapview.EventPointerMove, c.moveKey)
}

// Open opens the popup of f, replacing any open popup. It is a no-op if f
// is already open. With center set the map is recentered on f.
func (c *Coordinator) Open(f *feature.Feature, center bool) error {
	if f == nil {
		return fmt.Errorf("%w: feature is required", feature.ErrInvalidArgument)
	}
	store, ok := c.pool.Store(f.Type())
	if !ok {
		return fmt.Errorf("failed to open popup: %w: %q", feature.ErrUnknownType, f.Type())
	}
	if v, ok := store.VisibleByID(f.ID()); !ok || v != f {
		return fmt.Errorf("failed to open popup of %s: %w", f, ErrFeatureNotVisible)
	}
	return c.doOpen(store, f, center)
}

// OpenByID opens the popup of the entity with id in the manager of typ.
// Composed managers take composed ids.
func (c *Coordinator) OpenByID(typ, id string, center bool) error {
	m, ok := c.pool.Resolve(typ)
	if !ok {
		return fmt.Errorf("failed to open popup: %w: %q", feature.ErrUnknownType, typ)
	}
	f, ok := m.VisibleByID(id)
	if !ok {
		if m.HasFeature(id) {
			return fmt.Errorf("failed to open popup of %s:%s: %w", typ, id, ErrFeatureNotVisible)
		}
		return fmt.Errorf("failed to open popup of %s:%s: %w", typ, id, feature.ErrFeatureNotFound)
	}
	return c.Open(f, center)
}

// OpenByAttributes opens the popup of the entity whose id the manager of
// typ derives from attrs.
func (c *Coordinator) OpenByAttributes(typ string, attrs feature.Attributes, center bool) error {
	m, ok := c.pool.Resolve(typ)
	if !ok {
		return fmt.Errorf("failed to open popup: %w: %q", feature.ErrUnknownType, typ)
	}
	id, err := m.FeatureID(attrs)
	if err != nil {
		return fmt.Errorf("failed to open popup: %w", err)
	}
	return c.OpenByID(typ, id, center)
}

func (c *Coordinator) doOpen(store *feature.Store, f *feature.Feature, center bool) error {
	if c.open == f {
		return nil
	}
	w, ok := store.InfoWindowFor(f)
	if !ok {
		return fmt.Errorf("failed to open popup of %s: %w", f, ErrNoInfoWindow)
	}
	if center {
		c.m.SetCenter(f.Center())
	}

	closed := c.open
	c.open = f
	c.window = w
	c.position = nil
	c.Dispatch(EventOpen, OpenEvent{Opened: f, Closed: closed})
	return nil
}

// Close closes the open popup. It is a no-op if none is open.
func (c *Coordinator) Close() {
	if c.open == nil {
		return
	}
	closed := c.open
	c.open = nil
	c.window = infowindow.InfoWindow{}
	c.position = nil
	c.Dispatch(EventClose, closed)
}

// CloseIfMatchesFeature closes the popup if f is the open entity. Stores
// call it before f leaves the visible subset, so f also stops being hovered.
func (c *Coordinator) CloseIfMatchesFeature(f *feature.Feature) {
	if c.hover != nil && c.hover == f {
		c.setHover(nil)
	}
	if c.open != nil && c.open == f {
		c.Close()
	}
}

// CloseIfMatchesType closes the popup if the open entity has type typ and
// drops the hover of such an entity.
func (c *Coordinator) CloseIfMatchesType(typ string) {
	if c.hover != nil && c.hover.Type() == typ {
		c.setHover(nil)
	}
	if c.open != nil && c.open.Type() == typ {
		c.Close()
	}
}

// OpenFeature returns the entity whose popup is open.
func (c *Coordinator) OpenFeature() (*feature.Feature, bool) {
	return c.open, c.open != nil
}

// InfoWindow returns the popup configuration of the open entity.
func (c *Coordinator) InfoWindow() (infowindow.InfoWindow, bool) {
	return c.window, c.open != nil
}

// SetPosition pins the popup to p until the next open or close.
func (c *Coordinator) SetPosition(p orb.Point) {
	if c.open == nil {
		return
	}
	c.position = &p
}

// Anchor returns where the open popup sits. Unless pinned with SetPosition
// it follows the current geometry of the open entity.
func (c *Coordinator) Anchor() (Anchor, bool) {
	if c.open == nil {
		return Anchor{}, false
	}
	pos := c.open.Center()
	if c.position != nil {
		pos = *c.position
	}
	return Anchor{
		Position:    pos,
		Offset:      c.window.AdjustedOffset(),
		Positioning: c.window.EffectivePositioning(),
	}, true
}

// HoverFeature returns the entity under the pointer.
func (c *Coordinator) HoverFeature() (*feature.Feature, bool) {
	return c.hover, c.hover != nil
}

func (c *Coordinator) isFeatureLayer(l feature.Layer) bool {
	_, ok := c.pool.Store(l.LayerType())
	return ok
}

func (c *Coordinator) handleClick(e *mapview.PointerEvent) {
	c.m.ForEachFeatureAtPixel(e.Pixel, func(r feature.Renderable, l feature.Layer) bool {
		members := r.Members()
		if len(members) > 1 {
			c.zoomTo(r)
			e.Set(mapview.FlagZoomCenterChanged)
			return true
		}
		if len(members) == 0 {
			return false
		}
		if err := c.Open(members[0], false); err != nil {
			c.logger.Debug("Click did not open popup", "feature", members[0].String(), "error", err)
			return false
		}
		e.Set(mapview.FlagInfoWindowOpened)
		return true
	}, c.isFeatureLayer)
}

func (c *Coordinator) zoomTo(r feature.Renderable) {
	var b orb.Bound
	for i, f := range r.Members() {
		if i == 0 {
			b = f.Geometry().Bound()
			continue
		}
		b = b.Union(f.Geometry().Bound())
	}
	if b.Min == b.Max {
		c.m.SetZoom(c.m.View().Zoom + ClusterZoomStep)
		c.m.SetCenter(b.Center())
		return
	}
	c.m.Fit(b)
}

func (c *Coordinator) handleMove(e *mapview.PointerEvent) {
	var now *feature.Feature
	c.m.ForEachFeatureAtPixel(e.Pixel, func(r feature.Renderable, l feature.Layer) bool {
		if members := r.Members(); len(members) == 1 {
			now = members[0]
		}
		return true
	}, c.isFeatureLayer)

	c.setHover(now)
}

func (c *Coordinator) setHover(f *feature.Feature) {
	if f == c.hover {
		return
	}
	if c.hover != nil {
		c.hover.SetHover(false)
	}
	if f != nil {
		f.SetHover(true)
	}
	c.hover = f
}
