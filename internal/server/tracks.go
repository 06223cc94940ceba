// Package server exposes a track database over HTTP as GeoJSON.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	trackgeojson "github.com/MeKo-Tech/trackmap/internal/geojson"
	"github.com/MeKo-Tech/trackmap/internal/trackstore"
	"github.com/paulmach/orb/geojson"
)

// Resources served below /tracks/.
const (
	resourceList      = "list"
	resourcePath      = "path"
	resourceWaypoints = "waypoints"
)

// TrackHandler serves tracks from a track database.
type TrackHandler struct {
	reader       *trackstore.Reader
	logger       *slog.Logger
	cacheControl string
}

// TrackConfig configures the track handler.
type TrackConfig struct {
	DBPath       string
	CacheControl string
}

// TrackSummary is an entry of the track listing.
type TrackSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Created   time.Time  `json:"created"`
	Points    int        `json:"points"`
	Waypoints int        `json:"waypoints"`
	Type      string     `json:"type,omitempty"`
	Step      float64    `json:"step"`
	Bounds    [4]float64 `json:"bounds"`
}

// NewTrackHandler creates a handler reading from the database at
// cfg.DBPath. The database is opened read-only.
func NewTrackHandler(cfg TrackConfig, logger *slog.Logger) (*TrackHandler, error) {
	reader, err := trackstore.OpenReader(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open track database: %w", err)
	}

	return &TrackHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler returns the HTTP handler function. It serves
//
//	/tracks/                         track listing (JSON)
//	/tracks/{id}.geojson             raw path as a MultiLineString
//	/tracks/{id}/waypoints.geojson   stored playback dataset as points
func (h *TrackHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveTrack(w, r)
	}
}

func (h *TrackHandler) serveTrack(w http.ResponseWriter, r *http.Request) {
	id, resource, ok := parseTrackPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if h.cacheControl != "" {
		w.Header().Set("Cache-Control", h.cacheControl)
	}

	var (
		body any
		err  error
	)
	switch resource {
	case resourceList:
		body, err = h.list()
		w.Header().Set("Content-Type", "application/json")
	case resourcePath:
		body, err = h.path(id)
		w.Header().Set("Content-Type", "application/geo+json")
	case resourceWaypoints:
		body, err = h.waypoints(id)
		w.Header().Set("Content-Type", "application/geo+json")
	}
	if err != nil {
		if errors.Is(err, trackstore.ErrTrackNotFound) {
			http.Error(w, "Track not found", http.StatusNotFound)
			return
		}
		h.log().Error("Failed to read track", "id", id, "resource", resource, "error", err)
		http.Error(w, "Failed to read track", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *TrackHandler) list() ([]TrackSummary, error) {
	infos, err := h.reader.Tracks()
	if err != nil {
		return nil, err
	}

	out := make([]TrackSummary, 0, len(infos))
	for _, info := range infos {
		meta, err := h.reader.Metadata(info.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TrackSummary{
			ID:        info.ID,
			Name:      info.Name,
			Created:   info.Created,
			Points:    info.Points,
			Waypoints: info.Waypoints,
			Type:      meta.Type,
			Step:      meta.Step,
			Bounds:    meta.Bounds,
		})
	}
	return out, nil
}

func (h *TrackHandler) path(id string) (*geojson.FeatureCollection, error) {
	t, err := h.reader.Track(id)
	if err != nil {
		return nil, err
	}
	return trackgeojson.FromTrack(t, nil)
}

func (h *TrackHandler) waypoints(id string) (*geojson.FeatureCollection, error) {
	data, err := h.reader.Waypoints(id)
	if err != nil {
		return nil, err
	}
	return trackgeojson.FromWaypoints(data), nil
}

// Close closes the track database.
func (h *TrackHandler) Close() error {
	return h.reader.Close()
}

func (h *TrackHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseTrackPath parses a path below /tracks/ into a track id and the
// requested resource.
func parseTrackPath(requestPath string) (string, string, bool) {
	if requestPath == "/tracks" || requestPath == "/tracks/" {
		return "", resourceList, true
	}
	rest, ok := strings.CutPrefix(requestPath, "/tracks/")
	if !ok {
		return "", "", false
	}

	if id, ok := strings.CutSuffix(rest, "/waypoints.geojson"); ok && validID(id) {
		return id, resourceWaypoints, true
	}
	if id, ok := strings.CutSuffix(rest, ".geojson"); ok && validID(id) {
		return id, resourcePath, true
	}
	return "", "", false
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

// WithCORS allows cross-origin GET requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
