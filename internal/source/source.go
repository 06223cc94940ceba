// Package source reads raw trajectories from files and services and writes
// them back out.
//
// Every reader produces track.Track values whose waypoints carry "lng" and
// "lat" plus whatever properties the source format attaches to a vertex.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/track"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported track format")

// Load reads a trajectory file, choosing the reader by extension. The track
// type defaults to the file name without extension.
func Load(path string) (track.Track, error) {
	var (
		t   track.Track
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		t, err = LoadYAML(path)
	case ".geojson", ".json":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			t, err = ReadGeoJSON(data)
		}
	case ".shp":
		t, err = LoadShapefile(path)
	default:
		return track.Track{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return track.Track{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if t.Type == "" {
		t.Type = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// Save writes a trajectory file, choosing the writer by extension. GeoJSON
// output holds the segments as one MultiLineString, so vertex properties
// other than the coordinates are only kept by YAML and shapefiles.
func Save(path string, t track.Track) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = SaveYAML(path, t)
	case ".geojson", ".json":
		var data []byte
		fc, ferr := trackgeojson.FromTrack(t, nil)
		if ferr == nil {
			data, ferr = trackgeojson.Marshal(fc)
		}
		if ferr == nil {
			ferr = os.WriteFile(path, data, 0o644)
		}
		err = ferr
	case ".shp":
		err = SaveShapefile(path, t, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// vertex builds the attributes of one raw waypoint: props overlaid with
// the coordinate.
func vertex(props map[string]any, lon, lat float64) feature.Attributes {
	a := make(feature.Attributes, len(props)+2)
	for k, v := range props {
		a[k] = v
	}
	a["lng"] = lon
	a["lat"] = lat
	return a
}
