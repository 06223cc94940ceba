// Package geo holds small coordinate helpers shared by the track and CLI code.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Rotation returns the heading from start to end in radians, clockwise
// from north (+y), normalized to [0, 2π). Points are planar coordinates
// such as Web Mercator meters.
func Rotation(start, end orb.Point) float64 {
	r := math.Atan2(1, 0) - math.Atan2(end[1]-start[1], end[0]-start[0])
	r = math.Mod(r, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}

// FormatLon formats a longitude as degrees, minutes and seconds, e.g.
// "E 9°43′48.00″".
func FormatLon(lon float64, precision int) string {
	return formatDMS(lon, precision, "E", "W")
}

// FormatLat formats a latitude as degrees, minutes and seconds.
func FormatLat(lat float64, precision int) string {
	return formatDMS(lat, precision, "N", "S")
}

// FormatLonLat formats a lon/lat point.
func FormatLonLat(p orb.Point, precision int) (lon, lat string) {
	return FormatLon(p[0], precision), FormatLat(p[1], precision)
}

func formatDMS(v float64, precision int, positive, negative string) string {
	symbol := positive
	if v < 0 {
		symbol = negative
	}
	v = math.Abs(v)
	deg := math.Trunc(v)
	v = (v - deg) * 60
	mins := math.Trunc(v)
	sec := (v - mins) * 60
	return fmt.Sprintf("%s %d°%d′%.*f″", symbol, int(deg), int(mins), precision, sec)
}

// FormatLength formats a distance in meters as "85.00 m", or in kilometers
// above 100 m, e.g. "12.35 km".
func FormatLength(meters float64) string {
	if meters > 100 {
		return fmt.Sprintf("%.2f km", math.Round(meters/1000*100)/100)
	}
	return fmt.Sprintf("%.2f m", math.Round(meters*100)/100)
}

// PathLength returns the geodesic length in meters of lon/lat segments.
func PathLength(segments orb.MultiLineString) float64 {
	return orbgeo.Length(segments)
}
