// Package track replays recorded trajectories on a map.
//
// A Player resamples raw waypoint sequences into an evenly spaced dataset,
// puts the path and its start, end and active markers into a composed
// feature store, and moves the active marker on every index change.
package track

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/paulmach/orb"
)

// Event types dispatched by a Player.
const (
	EventChanged      = "TRACK_CHANGED"
	EventClear        = "TRACK_CLEAR"
	EventIndexChanged = "INDEX_CHANGED"
)

// Attribute keys the player sets on marker attributes.
const (
	AttrKind       = "track_kind"
	AttrType       = "track_type"
	AttrPath       = "path"
	AttrCoordinate = "coordinate"
	AttrGeodetic   = "geodetic"
	AttrHeading    = "heading"
)

// Kind identifies one of the four entities a player maintains.
type Kind string

const (
	KindLine   Kind = "TRACK_LINE"
	KindStart  Kind = "TRACK_START"
	KindEnd    Kind = "TRACK_END"
	KindActive Kind = "TRACK_ACTIVE"
)

// DefaultStep is the resampling distance in meters the CLI uses.
const DefaultStep = 50.0

var (
	// ErrInvalidTrack is returned for empty or malformed trajectories.
	ErrInvalidTrack = errors.New("invalid track")
	// ErrNoTrack is returned by playback operations before SetTrack.
	ErrNoTrack = errors.New("no track loaded")
	// ErrInvalidArgument marks invalid player options and settings.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Track is the input of SetTrack. Each segment is an ordered sequence of
// waypoint attributes. Step is the resampling distance in meters; zero
// keeps the raw vertices.
type Track struct {
	Type     string
	Segments [][]feature.Attributes
	Step     float64
}

// Single builds a one-segment track.
func Single(typ string, waypoints []feature.Attributes, step float64) Track {
	return Track{Type: typ, Segments: [][]feature.Attributes{waypoints}, Step: step}
}

// Waypoint is one element of a resampled dataset.
type Waypoint struct {
	// Attributes are the source attributes of the raw vertex the waypoint
	// was derived from.
	Attributes feature.Attributes
	// Coordinate is in the display projection.
	Coordinate orb.Point
	// Geodetic is lon/lat.
	Geodetic orb.Point
	// Heading is in radians clockwise from north.
	Heading float64
	// Segment is the index of the source segment.
	Segment int
}

// CoordinatesFunc returns the lon/lat of a raw waypoint.
type CoordinatesFunc func(attrs feature.Attributes) (orb.Point, error)

// DefaultCoordinates reads "lng" (or "lon") and "lat".
func DefaultCoordinates(attrs feature.Attributes) (orb.Point, error) {
	lon, ok := attrs.Float("lng")
	if !ok {
		lon, ok = attrs.Float("lon")
	}
	lat, okLat := attrs.Float("lat")
	if !ok || !okLat {
		return orb.Point{}, fmt.Errorf("%w: waypoint has no numeric lng/lat", ErrInvalidTrack)
	}
	return orb.Point{lon, lat}, nil
}

// PlayType is the playback direction.
type PlayType int

const (
	Forward PlayType = iota
	Backward
)

func (t PlayType) String() string {
	switch t {
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	default:
		return fmt.Sprintf("PlayType(%d)", int(t))
	}
}

// ParsePlayType parses "forward" or "backward", case-insensitively.
func ParsePlayType(s string) (PlayType, error) {
	switch strings.ToLower(s) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return Forward, fmt.Errorf("%w: unknown play type %q", ErrInvalidArgument, s)
	}
}

// Change is the payload of EventChanged.
type Change struct {
	Line   *feature.Feature
	Start  *feature.Feature
	End    *feature.Feature
	Active *feature.Feature
}
