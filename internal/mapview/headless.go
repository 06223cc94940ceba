package mapview

import (
	"cmp"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/trackmap/internal/event"
	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

const (
	tileSize = 256
	// worldWidth is the extent of the Web Mercator plane in meters.
	worldWidth = 2 * math.Pi * orb.EarthRadius

	DefaultMaxZoom      = 20
	DefaultHitTolerance = 5
)

// HeadlessOptions configures a Headless map. Center is in lon/lat.
type HeadlessOptions struct {
	Width        int
	Height       int
	Center       orb.Point
	Zoom         float64
	MaxZoom      float64
	HitTolerance float64
	Logger       *slog.Logger
}

// Headless is an in-memory Web Mercator map without a renderer. It keeps a
// viewport, its layers, and dispatches pointer events injected with Click
// and Move.
type Headless struct {
	events *event.Registry

	width, height float64
	center        orb.Point
	zoom          float64
	maxZoom       float64
	tolerance     float64
	layers        []feature.Layer
	logger        *slog.Logger
}

// NewHeadless creates a headless map.
func NewHeadless(opts HeadlessOptions) *Headless {
	m := &Headless{
		width:     float64(opts.Width),
		height:    float64(opts.Height),
		zoom:      opts.Zoom,
		maxZoom:   opts.MaxZoom,
		tolerance: opts.HitTolerance,
		logger:    opts.Logger,
	}
	if m.width <= 0 {
		m.width = 1024
	}
	if m.height <= 0 {
		m.height = 768
	}
	if m.maxZoom <= 0 {
		m.maxZoom = DefaultMaxZoom
	}
	if m.tolerance <= 0 {
		m.tolerance = DefaultHitTolerance
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.center = m.FromGeodetic(opts.Center)
	m.events = event.NewRegistry(m)
	return m
}

// Resolution returns the map units per pixel at zoom z.
func Resolution(z float64) float64 {
	return worldWidth / (tileSize * math.Pow(2, z))
}

func (m *Headless) AddLayer(l feature.Layer) {
	m.layers = append(m.layers, l)
	m.logger.Debug("Layer added", "type", l.LayerType(), "zIndex", l.ZIndex())
}

func (m *Headless) Layers() []feature.Layer {
	return slices.Clone(m.layers)
}

func (m *Headless) View() View {
	return View{Center: m.center, Zoom: m.zoom, Resolution: Resolution(m.zoom)}
}

func (m *Headless) SetCenter(c orb.Point) {
	m.center = c
}

func (m *Headless) SetZoom(z float64) {
	m.zoom = math.Max(0, math.Min(z, m.maxZoom))
}

// Fit centers the view on b at the largest zoom that shows all of it.
func (m *Headless) Fit(b orb.Bound) {
	m.center = b.Center()
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if w == 0 && h == 0 {
		m.SetZoom(m.maxZoom)
		return
	}
	res := math.Max(w/m.width, h/m.height)
	m.SetZoom(math.Log2(worldWidth / (tileSize * res)))
}

func (m *Headless) PixelFromCoordinate(c orb.Point) orb.Point {
	res := Resolution(m.zoom)
	return orb.Point{
		(c[0]-m.center[0])/res + m.width/2,
		(m.center[1]-c[1])/res + m.height/2,
	}
}

func (m *Headless) CoordinateFromPixel(px orb.Point) orb.Point {
	res := Resolution(m.zoom)
	return orb.Point{
		m.center[0] + (px[0]-m.width/2)*res,
		m.center[1] - (px[1]-m.height/2)*res,
	}
}

func (m *Headless) ToGeodetic(c orb.Point) orb.Point {
	return project.Mercator.ToWGS84(c)
}

func (m *Headless) FromGeodetic(c orb.Point) orb.Point {
	return project.WGS84.ToMercator(c)
}

// ForEachFeatureAtPixel visits renderables within the hit tolerance of px.
// Layers are visited by descending z-index, later layers first on ties,
// and renderables in reverse draw order.
func (m *Headless) ForEachFeatureAtPixel(px orb.Point, fn HitFunc, filter LayerFilter) bool {
	res := Resolution(m.zoom)
	coord := m.CoordinateFromPixel(px)
	maxDist := m.tolerance * res

	layers := slices.Clone(m.layers)
	slices.Reverse(layers)
	slices.SortStableFunc(layers, func(a, b feature.Layer) int {
		return cmp.Compare(b.ZIndex(), a.ZIndex())
	})

	for _, l := range layers {
		if !l.LayerVisible() || (filter != nil && !filter(l)) {
			continue
		}
		rs := l.Renderables(res)
		for i := len(rs) - 1; i >= 0; i-- {
			if hits(rs[i].Geometry(), coord, maxDist) && fn(rs[i], l) {
				return true
			}
		}
	}
	return false
}

func hits(g orb.Geometry, p orb.Point, maxDist float64) bool {
	switch g := g.(type) {
	case nil:
		return false
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(g, p) {
			return true
		}
	case orb.Bound:
		return g.Pad(maxDist).Contains(p)
	case orb.Collection:
		for _, sub := range g {
			if hits(sub, p, maxDist) {
				return true
			}
		}
		return false
	}
	return planar.DistanceFrom(g, p) <= maxDist
}

func (m *Headless) OnSingleClick(fn func(e *PointerEvent)) event.Key {
	return m.events.On(EventSingleClick, pointerListener(fn))
}

func (m *Headless) OnPointerMove(fn func(e *PointerEvent)) event.Key {
	return m.events.On(EventPointerMove, pointerListener(fn))
}

func (m *Headless) Off(types string, keys ...event.Key) {
	m.events.Off(types, keys...)
}

// Click dispatches a single click at a pixel and returns the event so the
// caller can inspect the flags the handlers raised.
func (m *Headless) Click(px orb.Point) *PointerEvent {
	return m.pointer(EventSingleClick, px)
}

// ClickCoordinate clicks at the pixel of a display coordinate.
func (m *Headless) ClickCoordinate(c orb.Point) *PointerEvent {
	return m.Click(m.PixelFromCoordinate(c))
}

// Move dispatches a pointer move to a pixel.
func (m *Headless) Move(px orb.Point) *PointerEvent {
	return m.pointer(EventPointerMove, px)
}

func (m *Headless) pointer(typ string, px orb.Point) *PointerEvent {
	e := &PointerEvent{Pixel: px, Coordinate: m.CoordinateFromPixel(px)}
	m.events.Dispatch(typ, e)
	return e
}

func pointerListener(fn func(e *PointerEvent)) event.Listener {
	return func(e *event.Event) {
		fn(e.Data.(*PointerEvent))
	}
}
