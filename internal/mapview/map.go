// Package mapview defines the narrow map interface the feature, popup and
// track packages consume, plus a headless implementation of it.
package mapview

import (
	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/paulmach/orb"
)

// Pointer event types.
const (
	EventSingleClick = "singleclick"
	EventPointerMove = "pointermove"
)

// Flag marks a pointer event as handled in a particular way, so later
// handlers of the same event can back off.
type Flag string

const (
	FlagInfoWindowOpened  Flag = "INFO_WINDOW_OPENED"
	FlagZoomCenterChanged Flag = "MAP_ZOOM_CENTER_CHANGED"
	FlagTrackIndexChanged Flag = "TRACK_PLAYER_INDEX_CHANGED"
)

// PointerEvent is a click or pointer move on the map. Coordinate is in the
// display projection.
type PointerEvent struct {
	Pixel      orb.Point
	Coordinate orb.Point

	flags map[Flag]bool
}

// Set raises a flag on the event.
func (e *PointerEvent) Set(f Flag) {
	if e.flags == nil {
		e.flags = make(map[Flag]bool)
	}
	e.flags[f] = true
}

// Has reports whether a flag was raised by an earlier handler.
func (e *PointerEvent) Has(f Flag) bool {
	return e.flags[f]
}

// View is the current viewport state.
type View struct {
	Center     orb.Point
	Zoom       float64
	Resolution float64
}

// HitFunc receives each renderable under a pixel, top-most first. Returning
// true stops the iteration.
type HitFunc func(r feature.Renderable, l feature.Layer) bool

// LayerFilter restricts hit detection to some layers.
type LayerFilter func(l feature.Layer) bool

// Map is the map-rendering collaborator.
type Map interface {
	AddLayer(l feature.Layer)
	Layers() []feature.Layer

	View() View
	SetCenter(c orb.Point)
	SetZoom(z float64)
	Fit(b orb.Bound)

	PixelFromCoordinate(c orb.Point) orb.Point
	CoordinateFromPixel(px orb.Point) orb.Point
	// ForEachFeatureAtPixel reports whether fn stopped the iteration.
	ForEachFeatureAtPixel(px orb.Point, fn HitFunc, filter LayerFilter) bool

	// ToGeodetic converts a display coordinate to lon/lat; FromGeodetic is
	// the inverse.
	ToGeodetic(c orb.Point) orb.Point
	FromGeodetic(c orb.Point) orb.Point

	OnSingleClick(fn func(e *PointerEvent)) event.Key
	OnPointerMove(fn func(e *PointerEvent)) event.Key
	Off(types string, keys ...event.Key)
}
