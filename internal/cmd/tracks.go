package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/MeKo-Tech/trackmap/internal/trackstore"
)

// loadTrack reads a track from a file or, when id is set, from the track
// database.
func loadTrack(input, id, db string) (track.Track, error) {
	if id != "" {
		r, err := trackstore.OpenReader(db)
		if err != nil {
			return track.Track{}, fmt.Errorf("failed to open track database: %w", err)
		}
		defer r.Close()
		return r.Track(id)
	}
	if input == "" {
		return track.Track{}, fmt.Errorf("--input or --id is required")
	}
	return source.Load(input)
}
