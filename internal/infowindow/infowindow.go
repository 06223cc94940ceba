// Package infowindow describes how a popup is anchored to a map entity.
package infowindow

// Positioning names the point of the popup box that sits on the anchor.
type Positioning string

const (
	BottomCenter Positioning = "bottom-center"
	TopCenter    Positioning = "top-center"
	CenterRight  Positioning = "center-right"
	CenterLeft   Positioning = "center-left"
)

// Placement is the side of the entity where the popup is shown.
type Placement int

const (
	Top Placement = iota
	Bottom
	Left
	Right
)

// placementGap is the pixel distance between anchor and popup box.
const placementGap = 20

// Positioning returns the popup positioning for a placement. A popup shown
// above the entity is anchored at its bottom edge, and so on.
func (p Placement) Positioning() Positioning {
	switch p {
	case Bottom:
		return TopCenter
	case Left:
		return CenterRight
	case Right:
		return CenterLeft
	default:
		return BottomCenter
	}
}

func (p Placement) String() string {
	switch p {
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "top"
	}
}

// Offset is a pixel offset [x, y] with y growing downwards.
type Offset [2]float64

// InfoWindow is the popup configuration of an entity. Template is opaque to
// this module; the UI layer renders it.
type InfoWindow struct {
	Template    any
	Offset      Offset
	Positioning Positioning
}

// New creates a popup configuration placed on the given side of the entity.
func New(template any, placement Placement, offset Offset) InfoWindow {
	return InfoWindow{
		Template:    template,
		Offset:      offset,
		Positioning: placement.Positioning(),
	}
}

// AdjustedOffset moves the offset away from the anchor so the popup box
// does not cover the entity.
func (w InfoWindow) AdjustedOffset() Offset {
	off := w.Offset
	switch w.positioning() {
	case BottomCenter:
		off[1] -= placementGap
	case TopCenter:
		off[1] += placementGap
	case CenterRight:
		off[0] -= placementGap
	case CenterLeft:
		off[0] += placementGap
	}
	return off
}

// EffectivePositioning returns the positioning, defaulting to BottomCenter.
func (w InfoWindow) EffectivePositioning() Positioning {
	return w.positioning()
}

func (w InfoWindow) positioning() Positioning {
	if w.Positioning == "" {
		return BottomCenter
	}
	return w.Positioning
}
