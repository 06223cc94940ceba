package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
)

// DefaultOverpassEndpoint is the public Overpass API interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// Overpass fetches OSM ways as trajectories.
type Overpass struct {
	client overpass.Client
}

// NewOverpass creates an Overpass source. An empty endpoint uses the public
// interpreter.
func NewOverpass(endpoint string) *Overpass {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}

	// Create client (rate limited to 1 concurrent request)
	client := overpass.NewWithSettings(
		endpoint,
		1, // Only 1 parallel request (API etiquette)
		http.DefaultClient,
	)

	return &Overpass{client: client}
}

// FetchWay fetches a way with its geometry and returns it as a
// single-segment track typed "way".
func (o *Overpass) FetchWay(ctx context.Context, id int64) (track.Track, error) {
	if err := ctx.Err(); err != nil {
		return track.Track{}, err
	}

	// Execute query (note: the client doesn't support context)
	result, err := o.client.Query(buildWayQuery(id))
	if err != nil {
		return track.Track{}, fmt.Errorf("overpass query failed: %w", err)
	}
	return WayTrack(&result, id)
}

func buildWayQuery(id int64) string {
	return fmt.Sprintf("[out:json][timeout:60];\nway(%d);\nout geom;\n", id)
}

// WayTrack converts way id of an Overpass result. Way tags are copied onto
// every vertex along with "osm_id".
func WayTrack(result *overpass.Result, id int64) (track.Track, error) {
	if result == nil {
		return track.Track{}, fmt.Errorf("%w: empty overpass result", track.ErrInvalidTrack)
	}
	way, ok := result.Ways[id]
	if !ok || way == nil || len(way.Geometry) == 0 {
		return track.Track{}, fmt.Errorf("%w: way %d has no geometry", track.ErrInvalidTrack, id)
	}

	props := make(map[string]any, len(way.Tags)+1)
	for k, v := range way.Tags {
		props[k] = v
	}
	props["osm_id"] = fmt.Sprintf("way/%d", way.ID)

	seg := make([]feature.Attributes, len(way.Geometry))
	for i, p := range way.Geometry {
		seg[i] = vertex(props, p.Lon, p.Lat)
	}
	return track.Track{Type: "way", Segments: [][]feature.Attributes{seg}}, nil
}
