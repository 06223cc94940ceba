// Package trackstore persists raw trajectories and their resampled
// playback datasets in a SQLite database.
package trackstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata describes a stored track.
type Metadata struct {
	Name        string  // Human-readable track name
	Type        string  // Track type handed to the player
	Source      string  // Where the track was read from (file path, overpass way, ...)
	Description string  // Free text
	Step        float64 // Resampling step in meters of the stored dataset, 0 for raw vertices
	Bounds      [4]float64
	Created     time.Time
}

// Info is a row of the track listing.
type Info struct {
	ID        string
	Name      string
	Created   time.Time
	Points    int
	Waypoints int
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Type != "" {
		result["type"] = m.Type
	}
	if m.Source != "" {
		result["source"] = m.Source
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Step > 0 {
		result["step"] = strconv.FormatFloat(m.Step, 'f', -1, 64)
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}

	return result
}

// metadataFromMap is the inverse of ToMap. Malformed numbers are ignored.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Type:        values["type"],
		Source:      values["source"],
		Description: values["description"],
	}

	if v, ok := values["step"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			meta.Step = f
		}
	}

	// Parse bounds: "minLon,minLat,maxLon,maxLat"
	if v, ok := values["bounds"]; ok {
		parts := strings.Split(v, ",")
		if len(parts) == 4 {
			for i, part := range parts {
				if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
					meta.Bounds[i] = f
				}
			}
		}
	}

	return meta
}
