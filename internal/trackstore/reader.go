package trackstore

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/paulmach/orb"
)

// ErrTrackNotFound is returned for unknown track ids.
var ErrTrackNotFound = errors.New("track not found")

// Reader reads tracks from a track database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a track database for reading.
func OpenReader(path string) (*Reader, error) {
	// Open in read-only mode with immutable flag
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify schema exists
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tracks'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain tracks table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// Tracks lists the stored tracks, oldest first.
func (r *Reader) Tracks() ([]Info, error) {
	rows, err := r.db.Query(`
		SELECT t.id, t.created_at,
			(SELECT COUNT(*) FROM points p WHERE p.track_id = t.id),
			(SELECT COUNT(*) FROM waypoints w WHERE w.track_id = t.id),
			COALESCE((SELECT value FROM metadata m WHERE m.track_id = t.id AND m.name = 'name'), '')
		FROM tracks t
		ORDER BY t.created_at, t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info    Info
			created string
		)
		if err := rows.Scan(&info.ID, &created, &info.Points, &info.Waypoints, &info.Name); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		info.Created, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}
	return out, nil
}

// Metadata reads the metadata of a track.
func (r *Reader) Metadata(id string) (Metadata, error) {
	var created string
	err := r.db.QueryRow("SELECT created_at FROM tracks WHERE id = ?", id).Scan(&created)
	if err == sql.ErrNoRows {
		return Metadata{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query track: %w", err)
	}

	rows, err := r.db.Query("SELECT name, value FROM metadata WHERE track_id = ?", id)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	meta := metadataFromMap(values)
	meta.Created, _ = time.Parse(time.RFC3339Nano, created)
	return meta, nil
}

// Segments reads the raw points of a track grouped by segment. Numeric
// attributes come back as float64.
func (r *Reader) Segments(id string) ([][]feature.Attributes, error) {
	if _, err := r.Metadata(id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		"SELECT segment, attributes FROM points WHERE track_id = ? ORDER BY segment, seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var (
		out  [][]feature.Attributes
		last = -1
	)
	for rows.Next() {
		var (
			segment int
			blob    []byte
		)
		if err := rows.Scan(&segment, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan point row: %w", err)
		}
		attrs, err := decodeAttributes(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode point of segment %d: %w", segment, err)
		}
		if segment != last {
			out = append(out, nil)
			last = segment
		}
		out[len(out)-1] = append(out[len(out)-1], attrs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points: %w", err)
	}
	return out, nil
}

// Track reads a stored track as player input.
func (r *Reader) Track(id string) (track.Track, error) {
	meta, err := r.Metadata(id)
	if err != nil {
		return track.Track{}, err
	}
	segments, err := r.Segments(id)
	if err != nil {
		return track.Track{}, err
	}
	return track.Track{Type: meta.Type, Segments: segments, Step: meta.Step}, nil
}

// Waypoints reads the resampled dataset of a track.
func (r *Reader) Waypoints(id string) ([]track.Waypoint, error) {
	if _, err := r.Metadata(id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		"SELECT segment, lon, lat, x, y, heading, attributes FROM waypoints WHERE track_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query waypoints: %w", err)
	}
	defer rows.Close()

	var out []track.Waypoint
	for rows.Next() {
		var (
			wp       track.Waypoint
			lon, lat float64
			x, y     float64
			blob     []byte
		)
		if err := rows.Scan(&wp.Segment, &lon, &lat, &x, &y, &wp.Heading, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan waypoint row: %w", err)
		}
		if wp.Attributes, err = decodeAttributes(blob); err != nil {
			return nil, fmt.Errorf("failed to decode waypoint %d: %w", len(out), err)
		}
		wp.Geodetic = orb.Point{lon, lat}
		wp.Coordinate = orb.Point{x, y}
		out = append(out, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waypoints: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// decodeAttributes decompresses and decodes an attribute blob.
func decodeAttributes(data []byte) (feature.Attributes, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}

	var attrs feature.Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
