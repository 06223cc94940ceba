package source

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/aquilax/go-perlin"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Synthetic generates a smooth random walk. The bearing drifts with 1D
// Perlin noise, so the same seed always yields the same track.
type Synthetic struct {
	Seed       int64
	Points     int       // Points per segment
	Segments   int       // Defaults to 1
	Start      orb.Point // lon/lat
	StepMeters float64   // Distance between consecutive points
	// Wiggle scales the bearing drift in degrees per step. Defaults to 40.
	Wiggle float64
}

// Generate builds the track. Consecutive segments continue where the
// previous one ended, with a gap of one step.
func (s Synthetic) Generate() (track.Track, error) {
	if s.Points < 1 {
		return track.Track{}, fmt.Errorf("%w: points must be positive", track.ErrInvalidArgument)
	}
	if s.StepMeters <= 0 {
		return track.Track{}, fmt.Errorf("%w: step must be positive", track.ErrInvalidArgument)
	}
	if s.Segments < 1 {
		s.Segments = 1
	}
	if s.Wiggle == 0 {
		s.Wiggle = 40
	}

	// alpha, beta and octaves as in the texture noise generator
	p := perlin.NewPerlin(2.0, 2.0, 3, s.Seed)

	pos := s.Start
	bearing := (p.Noise1D(0.5) + 1) * 180
	t := track.Track{Type: "synthetic"}
	n := 0
	for seg := 0; seg < s.Segments; seg++ {
		points := make([]feature.Attributes, 0, s.Points)
		for i := 0; i < s.Points; i++ {
			speed := 8 + 4*p.Noise1D(float64(n)/17+0.25)
			points = append(points, feature.Attributes{
				"lng":   pos[0],
				"lat":   pos[1],
				"seq":   n,
				"speed": math.Round(speed*100) / 100,
			})
			bearing += s.Wiggle * p.Noise1D(float64(n)/10+0.5)
			pos = orbgeo.PointAtBearingAndDistance(pos, bearing, s.StepMeters)
			n++
		}
		t.Segments = append(t.Segments, points)
	}
	return t, nil
}
