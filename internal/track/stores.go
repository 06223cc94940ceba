package track

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/paulmach/orb"
)

// Default store types created by NewStores.
const (
	DefaultLineType   = "track_line"
	DefaultPointType  = "track_point"
	DefaultPlayerType = "track_player"
)

// StoresOptions configures NewStores. Every field is optional.
type StoresOptions struct {
	LineType   string
	PointType  string
	PlayerType string

	LineStyle  feature.StyleFunc
	PointStyle feature.StyleFunc
	// InfoWindow configures popups on the point markers.
	InfoWindow feature.InfoWindowFunc
	ZIndex     int
	Logger     *slog.Logger
}

// Stores is the feature store set a Player writes into: a line store for
// the path, a point store for the markers and their composition.
type Stores struct {
	Line   *feature.Store
	Point  *feature.Store
	Player *feature.Composed
}

// NewStores builds the unbound line, point and composed stores of a
// player. Add Stores.Player to a pool to activate all three.
func NewStores(opts StoresOptions) (*Stores, error) {
	if opts.LineType == "" {
		opts.LineType = DefaultLineType
	}
	if opts.PointType == "" {
		opts.PointType = DefaultPointType
	}
	if opts.PlayerType == "" {
		opts.PlayerType = DefaultPlayerType
	}
	if opts.LineStyle == nil {
		opts.LineStyle = LineStyle
	}
	if opts.PointStyle == nil {
		opts.PointStyle = MarkerStyle
	}

	line, err := feature.New(feature.Options{
		Type:     opts.LineType,
		Key:      kindKey,
		Geometry: lineGeometry,
		Style:    opts.LineStyle,
		ZIndex:   opts.ZIndex,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create line store: %w", err)
	}

	pointZ := opts.ZIndex
	if pointZ != 0 {
		pointZ++
	}
	point, err := feature.New(feature.Options{
		Type:       opts.PointType,
		Key:        kindKey,
		Geometry:   pointGeometry,
		Style:      opts.PointStyle,
		InfoWindow: opts.InfoWindow,
		ZIndex:     pointZ,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create point store: %w", err)
	}

	lineType, pointType := opts.LineType, opts.PointType
	player, err := feature.Compose(feature.ComposeOptions{
		Type: opts.PlayerType,
		Classify: func(attrs feature.Attributes) string {
			if Kind(attrs.String(AttrKind)) == KindLine {
				return lineType
			}
			return pointType
		},
		Stores: []feature.Manager{line, point},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compose player store: %w", err)
	}

	return &Stores{Line: line, Point: point, Player: player}, nil
}

func kindKey(attrs feature.Attributes) string {
	return attrs.String(AttrKind)
}

func lineGeometry(attrs feature.Attributes) (orb.Geometry, error) {
	path, ok := attrs[AttrPath].(orb.MultiLineString)
	if !ok || len(path) == 0 {
		return nil, fmt.Errorf("%w: line marker has no path", ErrInvalidTrack)
	}
	return path, nil
}

func pointGeometry(attrs feature.Attributes) (orb.Geometry, error) {
	p, ok := attrs[AttrCoordinate].(orb.Point)
	if !ok {
		return nil, fmt.Errorf("%w: marker has no coordinate", ErrInvalidTrack)
	}
	return p, nil
}

// LineStyle draws the path as a blue line.
func LineStyle(f *feature.Feature, resolution float64) []feature.Style {
	width := 4.0
	if f.Hover() {
		width = 6
	}
	return []feature.Style{{Stroke: "#1f6feb", StrokeWidth: width}}
}

// MarkerStyle draws green start, red end and a rotated arrow for the
// active marker.
func MarkerStyle(f *feature.Feature, resolution float64) []feature.Style {
	attrs := f.Attributes()
	switch Kind(attrs.String(AttrKind)) {
	case KindStart:
		return []feature.Style{{Radius: 6, Fill: "#2da44e", Stroke: "#ffffff", StrokeWidth: 2}}
	case KindEnd:
		return []feature.Style{{Radius: 6, Fill: "#cf222e", Stroke: "#ffffff", StrokeWidth: 2}}
	case KindActive:
		heading, _ := attrs.Float(AttrHeading)
		return []feature.Style{{Icon: "arrow", Rotation: heading, Radius: 8, ZIndex: 1}}
	default:
		return feature.DefaultStyle(f, resolution)
	}
}
