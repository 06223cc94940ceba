package trackstore

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of raw points to buffer before flushing to the database.
	DefaultBatchSize = 500
)

// pointEntry is a single raw point to be written.
type pointEntry struct {
	TrackID string
	Segment int
	Seq     int
	Lon     float64
	Lat     float64
	Attrs   feature.Attributes
}

// Writer writes tracks to a track database.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []pointEntry
	batchSize int
	mu        sync.Mutex
}

// New creates a new track database writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]pointEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

// createSchema creates the track database schema.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS metadata (
			track_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE UNIQUE INDEX IF NOT EXISTS metadata_index ON metadata (track_id, name);

		CREATE TABLE IF NOT EXISTS points (
			track_id TEXT NOT NULL,
			segment INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			lon REAL NOT NULL,
			lat REAL NOT NULL,
			attributes BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS point_index ON points (track_id, segment, seq);

		CREATE TABLE IF NOT EXISTS waypoints (
			track_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			segment INTEGER NOT NULL,
			lon REAL NOT NULL,
			lat REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			heading REAL NOT NULL,
			attributes BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS waypoint_index ON waypoints (track_id, seq);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// CreateTrack registers a new track and returns its id.
func (w *Writer) CreateTrack(meta Metadata) (string, error) {
	id := uuid.NewString()
	created := meta.Created
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("INSERT INTO tracks (id, created_at) VALUES (?, ?)",
		id, created.UTC().Format(time.RFC3339Nano)); err != nil {
		return "", fmt.Errorf("failed to insert track: %w", err)
	}
	if err := insertMetadata(tx, id, meta); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// SetMetadata replaces the metadata of a track.
func (w *Writer) SetMetadata(id string, meta Metadata) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := checkTrack(tx, id); err != nil {
		return err
	}
	if err := insertMetadata(tx, id, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertMetadata replaces the metadata rows of a track.
func insertMetadata(tx *sql.Tx, id string, meta Metadata) error {
	if _, err := tx.Exec("DELETE FROM metadata WHERE track_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (track_id, name, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(id, key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

func checkTrack(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, id string) error {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM tracks WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("failed to query track: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return nil
}

// WriteSegments adds the raw points of a track to the batch. When the batch
// is full, it is automatically flushed. coords extracts lon/lat and may be
// nil for track.DefaultCoordinates.
func (w *Writer) WriteSegments(id string, segments [][]feature.Attributes, coords track.CoordinatesFunc) error {
	if coords == nil {
		coords = track.DefaultCoordinates
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for s, segment := range segments {
		for i, attrs := range segment {
			p, err := coords(attrs)
			if err != nil {
				return fmt.Errorf("failed to read point %d of segment %d: %w", i, s, err)
			}
			w.batch = append(w.batch, pointEntry{
				TrackID: id,
				Segment: s,
				Seq:     i,
				Lon:     p[0],
				Lat:     p[1],
				Attrs:   attrs,
			})
			if len(w.batch) >= w.batchSize {
				if err := w.flushLocked(); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// Flush writes any buffered points to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered points to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO points (track_id, segment, seq, lon, lat, attributes) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range w.batch {
		blob, err := encodeAttributes(p.Attrs)
		if err != nil {
			return fmt.Errorf("failed to encode point %s/%d/%d: %w", p.TrackID, p.Segment, p.Seq, err)
		}

		if _, err := stmt.Exec(p.TrackID, p.Segment, p.Seq, p.Lon, p.Lat, blob); err != nil {
			return fmt.Errorf("failed to insert point %s/%d/%d: %w", p.TrackID, p.Segment, p.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// WriteWaypoints replaces the resampled dataset of a track.
func (w *Writer) WriteWaypoints(id string, data []track.Waypoint) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := checkTrack(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM waypoints WHERE track_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear waypoints: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO waypoints (track_id, seq, segment, lon, lat, x, y, heading, attributes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, wp := range data {
		blob, err := encodeAttributes(wp.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode waypoint %d: %w", i, err)
		}
		if _, err := stmt.Exec(id, i, wp.Segment, wp.Geodetic[0], wp.Geodetic[1],
			wp.Coordinate[0], wp.Coordinate[1], wp.Heading, blob); err != nil {
			return fmt.Errorf("failed to insert waypoint %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteTrack removes a track with its points and waypoints.
func (w *Writer) DeleteTrack(id string) error {
	if err := w.Flush(); err != nil {
		return err
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if err := checkTrack(tx, id); err != nil {
		return err
	}
	for _, table := range []string{"points", "waypoints", "metadata"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE track_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM tracks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close flushes any remaining points and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// encodeAttributes stores attributes as gzip-compressed JSON.
func encodeAttributes(attrs feature.Attributes) ([]byte, error) {
	if attrs == nil {
		attrs = feature.Attributes{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
