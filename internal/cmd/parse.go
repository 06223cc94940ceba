package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat" into an orb.Bound.
func parseBBox(s string) (orb.Bound, error) {
	vals, err := parseFloats(s, 4)
	if err != nil {
		return orb.Bound{}, err
	}

	// Validate
	if vals[0] >= vals[2] {
		return orb.Bound{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", vals[0], vals[2])
	}
	if vals[1] >= vals[3] {
		return orb.Bound{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", vals[1], vals[3])
	}

	return orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}, nil
}

// parsePoint parses "lon,lat".
func parsePoint(s string) (orb.Point, error) {
	vals, err := parseFloats(s, 2)
	if err != nil {
		return orb.Point{}, err
	}
	if vals[0] < -180 || vals[0] > 180 || vals[1] < -90 || vals[1] > 90 {
		return orb.Point{}, fmt.Errorf("coordinate (%.4f, %.4f) is out of range", vals[0], vals[1])
	}
	return orb.Point{vals[0], vals[1]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}

	vals := make([]float64, n)
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		vals[i] = val
	}
	return vals, nil
}
