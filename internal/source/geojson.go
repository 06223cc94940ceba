package source

import (
	"fmt"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSON reads a trajectory from a GeoJSON feature collection.
//
// Every LineString becomes a segment, as does every line of a
// MultiLineString; each vertex gets a copy of the feature properties.
// Consecutive Point features form one segment, each point keeping its own
// properties. A "track_type" property on the first feature sets the type.
func ReadGeoJSON(data []byte) (track.Track, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return track.Track{}, fmt.Errorf("failed to parse geojson: %w", err)
	}

	var (
		t      track.Track
		points []feature.Attributes
	)
	flush := func() {
		if len(points) > 0 {
			t.Segments = append(t.Segments, points)
			points = nil
		}
	}
	addLine := func(ls orb.LineString, props geojson.Properties) {
		seg := make([]feature.Attributes, len(ls))
		for i, p := range ls {
			seg[i] = vertex(props, p[0], p[1])
		}
		t.Segments = append(t.Segments, seg)
	}

	for i, f := range fc.Features {
		if i == 0 {
			t.Type = f.Properties.MustString(track.AttrType, "")
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			points = append(points, vertex(f.Properties, g[0], g[1]))
		case orb.LineString:
			flush()
			addLine(g, f.Properties)
		case orb.MultiLineString:
			flush()
			for _, ls := range g {
				addLine(ls, f.Properties)
			}
		default:
			return track.Track{}, fmt.Errorf("%w: unsupported geometry %s in feature %d",
				track.ErrInvalidTrack, f.Geometry.GeoJSONType(), i)
		}
	}
	flush()

	if len(t.Segments) == 0 {
		return track.Track{}, fmt.Errorf("%w: no line or point features", track.ErrInvalidTrack)
	}
	return t, nil
}
