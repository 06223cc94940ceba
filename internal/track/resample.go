package track

import (
	"math"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/geo"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// stepEpsilon absorbs floating point error when a segment length is an
// exact multiple of the step.
const stepEpsilon = 1e-6

// segment is one raw waypoint sequence with its coordinates resolved.
type segment struct {
	attrs    []feature.Attributes
	geodetic orb.LineString
	display  orb.LineString
}

// Resample turns raw segments into a playback dataset. With step > 0
// waypoints are placed every step meters along each segment's great
// circle chords, and the exact segment end is always the last waypoint of
// the segment. With step == 0 every raw vertex becomes one waypoint.
// toDisplay converts lon/lat to the display projection.
func Resample(segments [][]feature.Attributes, step float64, coords CoordinatesFunc, toDisplay orb.Projection) ([]Waypoint, error) {
	segs, err := resolve(segments, coords, toDisplay)
	if err != nil {
		return nil, err
	}
	return resample(segs, step), nil
}

func resolve(segments [][]feature.Attributes, coords CoordinatesFunc, toDisplay orb.Projection) ([]segment, error) {
	if len(segments) == 0 {
		return nil, ErrInvalidTrack
	}
	if coords == nil {
		coords = DefaultCoordinates
	}

	out := make([]segment, len(segments))
	for i, raw := range segments {
		if len(raw) == 0 {
			return nil, ErrInvalidTrack
		}
		seg := segment{
			attrs:    raw,
			geodetic: make(orb.LineString, len(raw)),
			display:  make(orb.LineString, len(raw)),
		}
		for j, a := range raw {
			p, err := coords(a)
			if err != nil {
				return nil, err
			}
			seg.geodetic[j] = p
			seg.display[j] = toDisplay(p)
		}
		out[i] = seg
	}
	return out, nil
}

func resample(segs []segment, step float64) []Waypoint {
	var out []Waypoint
	for i, seg := range segs {
		if step > 0 {
			out = appendStepped(out, i, seg, step)
		} else {
			out = appendVertices(out, i, seg)
		}
	}
	return out
}

// appendVertices keeps every raw vertex. A vertex heads along the chord to
// the next vertex; the last vertex keeps the heading of the final chord.
func appendVertices(out []Waypoint, index int, seg segment) []Waypoint {
	n := len(seg.display)
	heading := 0.0
	for i := 0; i < n; i++ {
		from, to := i, i+1
		if to == n {
			from, to = n-2, n-1
		}
		if from >= 0 && seg.display[from] != seg.display[to] {
			heading = geo.Rotation(seg.display[from], seg.display[to])
		}
		out = append(out, Waypoint{
			Attributes: seg.attrs[i],
			Coordinate: seg.display[i],
			Geodetic:   seg.geodetic[i],
			Heading:    heading,
			Segment:    index,
		})
	}
	return out
}

// appendStepped walks the chords of a segment and emits a waypoint every
// step meters. The distance left over at the end of a chord carries into
// the next one, so chord joins do not disturb the spacing. Waypoints carry
// the attributes of their chord's start vertex; the closing waypoint at the
// segment end carries the end vertex's attributes.
func appendStepped(out []Waypoint, index int, seg segment, step float64) []Waypoint {
	n := len(seg.geodetic)
	var (
		surplus float64
		heading float64
	)
	for i := 0; i < n-1; i++ {
		start, end := seg.geodetic[i], seg.geodetic[i+1]
		d := orbgeo.DistanceHaversine(start, end)
		if d == 0 {
			continue
		}
		heading = geo.Rotation(seg.display[i], seg.display[i+1])
		bearing := orbgeo.Bearing(start, end)

		for ; surplus < d-stepEpsilon; surplus += step {
			p := start
			if surplus > 0 {
				p = orbgeo.PointAtBearingAndDistance(start, bearing, surplus)
			}
			out = append(out, Waypoint{
				Attributes: seg.attrs[i],
				Coordinate: pointOnChord(seg, i, surplus, d),
				Geodetic:   p,
				Heading:    heading,
				Segment:    index,
			})
		}
		surplus -= d
	}

	return append(out, Waypoint{
		Attributes: seg.attrs[n-1],
		Coordinate: seg.display[n-1],
		Geodetic:   seg.geodetic[n-1],
		Heading:    heading,
		Segment:    index,
	})
}

// pointOnChord returns the display coordinate of the waypoint at distance
// along chord i. The chord start is returned exactly; other positions are
// linearly interpolated in the display projection, matching how the path
// itself is drawn.
func pointOnChord(seg segment, i int, distance, length float64) orb.Point {
	if distance <= 0 {
		return seg.display[i]
	}
	f := math.Min(distance/length, 1)
	a, b := seg.display[i], seg.display[i+1]
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}
