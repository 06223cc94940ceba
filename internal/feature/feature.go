// Package feature manages collections of geo-referenced map entities.
//
// A Store owns the entities of one semantic type. It splits them into a
// visible and a hidden subset, derives their geometry from caller
// attributes, optionally groups visible entities into clusters, and closes
// the shared popup before an entity leaves the visible subset. Several
// stores can be put behind one virtual store with Compose, and a Pool
// registers stores against the popup coordinator that owns them.
package feature

import (
	"fmt"
	"maps"

	"github.com/paulmach/orb"
)

// Attributes is the caller-owned attribute mapping of an entity.
type Attributes map[string]any

// Merge returns a new mapping holding a's fields overwritten by b's.
func (a Attributes) Merge(b Attributes) Attributes {
	out := make(Attributes, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// String returns the value of key formatted as a string, or "" if absent.
func (a Attributes) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Float returns the numeric value of key.
func (a Attributes) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// Renderable is what a store hands to the rendering collaborator: either a
// single entity or a cluster of at least two entities.
type Renderable interface {
	Geometry() orb.Geometry
	Members() []*Feature
}

// Feature is a single entity owned by a Store.
type Feature struct {
	id     string
	typ    string
	attrs  Attributes
	geom   orb.Geometry
	hidden bool
	hover  bool
	seq    uint64
}

// ID returns the entity id, unique within its store.
func (f *Feature) ID() string { return f.id }

// Type returns the type of the owning store.
func (f *Feature) Type() string { return f.typ }

// Attributes returns the current attributes. Callers must not modify the
// returned map; use Store.Update instead.
func (f *Feature) Attributes() Attributes { return f.attrs }

// Geometry returns the geometry derived from the current attributes.
func (f *Feature) Geometry() orb.Geometry { return f.geom }

// Hidden reports whether the entity is in its store's hidden subset.
func (f *Feature) Hidden() bool { return f.hidden }

// Hover reports whether the pointer is currently over the entity.
func (f *Feature) Hover() bool { return f.hover }

// SetHover sets the advisory hover flag read by style functions.
func (f *Feature) SetHover(hover bool) { f.hover = hover }

// Members returns the entity itself, so a single entity renders like a
// group of size one.
func (f *Feature) Members() []*Feature { return []*Feature{f} }

// Center returns the point a popup or cluster is anchored at.
func (f *Feature) Center() orb.Point {
	return anchorOf(f.geom)
}

func (f *Feature) String() string {
	return f.typ + ":" + f.id
}

// Cluster is an ephemeral group of two or more nearby visible entities.
type Cluster struct {
	center  orb.Point
	members []*Feature
}

// Geometry returns the centroid of the members.
func (c *Cluster) Geometry() orb.Geometry { return c.center }

// Members returns the grouped entities in insertion order.
func (c *Cluster) Members() []*Feature { return c.members }

// Size returns the number of grouped entities.
func (c *Cluster) Size() int { return len(c.members) }

// Bound returns the bounding box of all member geometries.
func (c *Cluster) Bound() orb.Bound {
	b := c.members[0].geom.Bound()
	for _, m := range c.members[1:] {
		b = b.Union(m.geom.Bound())
	}
	return b
}

func anchorOf(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}
