package feature

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

type clusterCache struct {
	version    uint64
	resolution float64
	distance   float64
	items      []Renderable
}

type clusterPoint struct {
	f *Feature
	p orb.Point
}

func (c clusterPoint) Point() orb.Point { return c.p }

// Cluster enables proximity grouping of visible entities. distance is in
// screen pixels; zero or less selects DefaultClusterDistance.
func (s *Store) Cluster(distance float64) {
	if distance <= 0 {
		distance = DefaultClusterDistance
	}
	s.clusterDistance = distance
	s.cache = nil
}

// Single disables grouping.
func (s *Store) Single() {
	s.clusterDistance = 0
	s.cache = nil
}

// Clustered reports whether grouping is enabled.
func (s *Store) Clustered() bool {
	return s.clusterDistance > 0
}

// Renderables returns what the map draws for this store at a resolution
// (map units per pixel): every visible entity, or clusters of them when
// grouping is enabled. A group of one is returned as the entity itself.
func (s *Store) Renderables(resolution float64) []Renderable {
	visible := s.VisibleFeatures()
	if s.clusterDistance <= 0 || len(visible) == 0 {
		out := make([]Renderable, len(visible))
		for i, f := range visible {
			out[i] = f
		}
		return out
	}

	if c := s.cache; c != nil && c.version == s.version && c.resolution == resolution && c.distance == s.clusterDistance {
		return c.items
	}

	items := group(visible, s.clusterDistance*resolution)
	s.cache = &clusterCache{
		version:    s.version,
		resolution: resolution,
		distance:   s.clusterDistance,
		items:      items,
	}
	return items
}

// group walks the entities in insertion order; each entity not yet grouped
// collects every ungrouped entity within mapDistance (a square window, as
// map renderers do it) into one group.
func group(fs []*Feature, mapDistance float64) []Renderable {
	points := make([]clusterPoint, len(fs))
	bound := orb.Bound{Min: fs[0].Center(), Max: fs[0].Center()}
	for i, f := range fs {
		points[i] = clusterPoint{f: f, p: f.Center()}
		bound = bound.Extend(points[i].p)
	}

	qt := quadtree.New(bound.Pad(1))
	for _, p := range points {
		// Points are inside the padded bound, Add cannot fail.
		_ = qt.Add(p)
	}

	grouped := make(map[*Feature]bool, len(fs))
	var (
		out []Renderable
		buf []orb.Pointer
	)
	for _, p := range points {
		if grouped[p.f] {
			continue
		}
		window := orb.Bound{Min: p.p, Max: p.p}.Pad(mapDistance)
		buf = qt.InBound(buf[:0], window)

		var members []*Feature
		for _, n := range buf {
			cp := n.(clusterPoint)
			if !grouped[cp.f] {
				grouped[cp.f] = true
				members = append(members, cp.f)
			}
		}
		sortBySeq(members)

		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		out = append(out, &Cluster{center: centroid(members), members: members})
	}
	return out
}

func centroid(fs []*Feature) orb.Point {
	var x, y float64
	for _, f := range fs {
		c := f.Center()
		x += c[0]
		y += c[1]
	}
	n := float64(len(fs))
	return orb.Point{x / n, y / n}
}
