package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/jonas-p/go-shp"
)

// LoadShapefile reads every polyline part of a shapefile as a segment.
// DBF fields are copied onto each vertex; numeric fields become float64.
func LoadShapefile(path string) (track.Track, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return track.Track{}, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		// Field names are NUL padded byte arrays
		names[i] = strings.TrimRight(string(field.Name[:]), "\x00 ")
	}

	var t track.Track
	for shape.Next() {
		n, p := shape.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			raw := strings.TrimSpace(shape.ReadAttribute(n, i))
			if raw == "" {
				continue
			}
			if fields[i].Fieldtype == 'N' || fields[i].Fieldtype == 'F' {
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					props[name] = f
					continue
				}
			}
			props[name] = raw
		}
		if typ, ok := props[typeField].(string); ok && t.Type == "" {
			t.Type = typ
		}

		switch geom := p.(type) {
		case *shp.PolyLine:
			for part := 0; part < len(geom.Parts); part++ {
				start := int(geom.Parts[part])
				end := len(geom.Points)
				if part+1 < len(geom.Parts) {
					end = int(geom.Parts[part+1])
				}
				seg := make([]feature.Attributes, 0, end-start)
				for _, point := range geom.Points[start:end] {
					seg = append(seg, vertex(props, point.X, point.Y))
				}
				if len(seg) > 0 {
					t.Segments = append(t.Segments, seg)
				}
			}
		case *shp.Point:
			seg := []feature.Attributes{vertex(props, geom.X, geom.Y)}
			t.Segments = append(t.Segments, seg)
		}
	}

	if len(t.Segments) == 0 {
		return track.Track{}, fmt.Errorf("%w: no polylines in %s", track.ErrInvalidTrack, path)
	}
	return t, nil
}

// typeField is the DBF column holding the track type.
const typeField = "TYPE"

// SaveShapefile writes the segments of a track as one polyline record with
// one part per segment. coords may be nil for track.DefaultCoordinates.
func SaveShapefile(path string, t track.Track, coords track.CoordinatesFunc) error {
	if coords == nil {
		coords = track.DefaultCoordinates
	}

	parts := make([][]shp.Point, 0, len(t.Segments))
	for s, segment := range t.Segments {
		part := make([]shp.Point, 0, len(segment))
		for i, attrs := range segment {
			p, err := coords(attrs)
			if err != nil {
				return fmt.Errorf("failed to read point %d of segment %d: %w", i, s, err)
			}
			part = append(part, shp.Point{X: p[0], Y: p[1]})
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: no segments", track.ErrInvalidTrack)
	}

	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	if err := w.SetFields([]shp.Field{shp.StringField(typeField, 64)}); err != nil {
		w.Close()
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}
	row := w.Write(shp.NewPolyLine(parts))
	if err := w.WriteAttribute(int(row), 0, t.Type); err != nil {
		w.Close()
		return fmt.Errorf("failed to write shapefile attribute: %w", err)
	}
	w.Close()

	// The writer names the table <base>dbf, the reader expects <base>.dbf
	base := path
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		base = path[:len(path)-len(".shp")]
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return fmt.Errorf("failed to rename shapefile table: %w", err)
	}
	return nil
}
