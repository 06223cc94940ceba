package feature

import (
	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/infowindow"
	"github.com/paulmach/orb"
)

// Event types dispatched by stores. Entity events carry the *Feature.
const (
	EventAdd       = "ADD_FEATURE"
	EventUpdate    = "UPDATE_FEATURE"
	EventRemove    = "REMOVE_FEATURE"
	EventHide      = "HIDE_FEATURE"
	EventShow      = "SHOW_FEATURE"
	EventHideLayer = "HIDE_LAYER"
	EventShowLayer = "SHOW_LAYER"
	EventClear     = "CLEAR"
)

var allEvents = []string{
	EventAdd, EventUpdate, EventRemove, EventHide, EventShow,
	EventHideLayer, EventShowLayer, EventClear,
}

// Layer is the renderable view of a store handed to the map.
type Layer interface {
	LayerType() string
	LayerVisible() bool
	ZIndex() int
	Renderables(resolution float64) []Renderable
}

// PopupCloser is the part of the popup coordinator stores call before an
// entity leaves the visible subset.
type PopupCloser interface {
	CloseIfMatchesFeature(f *Feature)
	CloseIfMatchesType(typ string)
}

// Binder is what a store is activated against: the popup coordinator,
// which also owns the map the store's layer is added to.
type Binder interface {
	PopupCloser
	AddLayer(l Layer)
}

// KeyFunc derives an entity id from attributes. An empty id is invalid.
type KeyFunc func(attrs Attributes) string

// GeometryFunc derives an entity geometry from attributes.
type GeometryFunc func(attrs Attributes) (orb.Geometry, error)

// InfoWindowFunc returns the popup configuration of an entity, or false if
// the entity has no popup.
type InfoWindowFunc func(f *Feature) (infowindow.InfoWindow, bool)

// ClassifyFunc maps attributes to the type of the delegate store that owns them.
type ClassifyFunc func(attrs Attributes) string

// DefaultKey reads the "id" attribute.
func DefaultKey(attrs Attributes) string {
	return attrs.String("id")
}

// StaticInfoWindow returns the same popup configuration for every entity.
func StaticInfoWindow(w infowindow.InfoWindow) InfoWindowFunc {
	return func(*Feature) (infowindow.InfoWindow, bool) {
		return w, true
	}
}

// Manager is implemented by Store and Composed.
type Manager interface {
	Type() string
	Active() bool
	Activate(b Binder) error

	Add(attrs ...Attributes) error
	Update(attrs ...Attributes) error
	Upsert(attrs ...Attributes) error
	Remove(sel Selector) error
	Hide(sel Selector) error
	Show(sel Selector) error
	Clear() error
	HideLayer() error
	ShowLayer() error

	FeatureID(attrs Attributes) (string, error)
	GeometryOf(attrs Attributes) (orb.Geometry, error)
	FeatureByID(id string) (*Feature, bool)
	VisibleByID(id string) (*Feature, bool)
	HasFeature(id string) bool
	Features() []*Feature
	InfoWindowFor(f *Feature) (infowindow.InfoWindow, bool)

	// Delegates returns the managers a composed store routes to, or nil.
	Delegates() []Manager

	On(types string, l event.Listener) event.Key
	Once(types string, l event.Listener) event.Key
	Off(types string, keys ...event.Key)
}
