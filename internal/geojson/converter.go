// Package geojson exports feature store contents and playback datasets as
// GeoJSON.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// Property keys added to exported features.
const (
	PropFeatureID   = "feature_id"
	PropFeatureType = "feature_type"
	PropIndex       = "index"
	PropSegment     = "segment"
	PropHeading     = "heading_deg"
)

// FromFeatures converts store entities to a FeatureCollection. Geometries
// are converted with toGeodetic (display projection to lon/lat); nil keeps
// them as they are. Attributes holding geometries are left out.
func FromFeatures(fs []*feature.Feature, toGeodetic orb.Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, f := range fs {
		if f.Geometry() == nil {
			continue
		}

		g := orb.Clone(f.Geometry())
		if toGeodetic != nil {
			g = project.Geometry(g, toGeodetic)
		}

		geoFeature := geojson.NewFeature(g)
		copyProperties(geoFeature.Properties, f.Attributes())
		geoFeature.Properties[PropFeatureID] = f.ID()
		geoFeature.Properties[PropFeatureType] = f.Type()

		fc.Append(geoFeature)
	}

	return fc
}

// FromWaypoints converts a playback dataset to one Point feature per
// waypoint, in lon/lat, with its index, segment and heading in degrees.
func FromWaypoints(data []track.Waypoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, wp := range data {
		geoFeature := geojson.NewFeature(wp.Geodetic)
		copyProperties(geoFeature.Properties, wp.Attributes)
		geoFeature.Properties[PropIndex] = i
		geoFeature.Properties[PropSegment] = wp.Segment
		geoFeature.Properties[PropHeading] = math.Round(wp.Heading*180/math.Pi*100) / 100

		fc.Append(geoFeature)
	}

	return fc
}

// FromTrack converts raw segments to a single MultiLineString feature.
func FromTrack(t track.Track, coords track.CoordinatesFunc) (*geojson.FeatureCollection, error) {
	if coords == nil {
		coords = track.DefaultCoordinates
	}

	path := make(orb.MultiLineString, 0, len(t.Segments))
	for s, segment := range t.Segments {
		ls := make(orb.LineString, 0, len(segment))
		for i, attrs := range segment {
			p, err := coords(attrs)
			if err != nil {
				return nil, fmt.Errorf("failed to read point %d of segment %d: %w", i, s, err)
			}
			ls = append(ls, p)
		}
		path = append(path, ls)
	}

	fc := geojson.NewFeatureCollection()
	geoFeature := geojson.NewFeature(path)
	geoFeature.Properties[track.AttrType] = t.Type
	if t.Step > 0 {
		geoFeature.Properties["step"] = t.Step
	}
	fc.Append(geoFeature)
	return fc, nil
}

// Marshal encodes a FeatureCollection as indented JSON.
func Marshal(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

func copyProperties(dst geojson.Properties, attrs feature.Attributes) {
	for key, value := range attrs {
		if _, isGeometry := value.(orb.Geometry); isGeometry {
			continue
		}
		dst[key] = value
	}
}
