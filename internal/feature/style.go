package feature

import (
	"math"
	"strconv"
)

// Style is a renderer-neutral description of how to draw a renderable.
type Style struct {
	Icon        string
	Rotation    float64
	Radius      float64
	Fill        string
	Stroke      string
	StrokeWidth float64
	Text        string
	ZIndex      int
}

// StyleFunc returns the styles of a single entity at a view resolution.
type StyleFunc func(f *Feature, resolution float64) []Style

// ClusterStyleFunc returns the styles of a cluster at a view resolution.
type ClusterStyleFunc func(c *Cluster, resolution float64) []Style

// DefaultStyle draws a small blue dot.
func DefaultStyle(f *Feature, resolution float64) []Style {
	stroke := "#3399cc"
	if f.Hover() {
		stroke = "#ff6600"
	}
	return []Style{{
		Radius:      5,
		Fill:        "rgba(255, 255, 255, 0.4)",
		Stroke:      stroke,
		StrokeWidth: 1.25,
	}}
}

// DefaultClusterStyle colors clusters green, orange or red by size and
// labels them with the member count.
func DefaultClusterStyle(c *Cluster, resolution float64) []Style {
	size := c.Size()
	stroke, fill := "rgba(0, 128, 0, 0.5)", "rgba(0, 128, 0, 1)"
	switch {
	case size > 25:
		stroke, fill = "rgba(192, 0, 0, 0.5)", "rgba(192, 0, 0, 1)"
	case size > 8:
		stroke, fill = "rgba(255, 128, 0, 0.5)", "rgba(255, 128, 0, 1)"
	}
	return []Style{{
		Radius:      ClusterRadius(size),
		Fill:        fill,
		Stroke:      stroke,
		StrokeWidth: 15,
		Text:        strconv.Itoa(size),
	}}
}

// ClusterRadius grows with the member count within [10, 18] pixels.
func ClusterRadius(size int) float64 {
	return math.Max(10, math.Min(float64(size)*0.75, 18))
}
