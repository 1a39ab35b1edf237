package view

import "math"

// Zoom limits and step factors.
const (
	MinZoom  = 0.1
	MaxZoom  = 10.0
	ZoomStep = 1.25

	// WheelOut is applied for a wheel event scrolling down (deltaY > 0),
	// WheelIn otherwise.
	WheelOut = 0.9
	WheelIn  = 1.1
)

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN maps to 1.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ZoomIn multiplies zoom by ZoomStep. Pan is unchanged.
func (s Session) ZoomIn() Session {
	s.Zoom = ClampZoom(s.Zoom * ZoomStep)
	return s
}

// ZoomOut divides zoom by ZoomStep. Pan is unchanged.
func (s Session) ZoomOut() Session {
	s.Zoom = ClampZoom(s.Zoom / ZoomStep)
	return s
}

// ZoomAtPoint applies one wheel step anchored at viewport position p.
//
// The image point under p stays under p:
//
//	pan' = pan - (p - pan) * (zoom'/zoom - 1)
//
// It reports false and returns s unchanged when the clamped zoom does not
// move, so no redraw is needed.
func (s Session) ZoomAtPoint(p Point, deltaY float64) (Session, bool) {
	factor := WheelIn
	if deltaY > 0 {
		factor = WheelOut
	}

	z := ClampZoom(s.Zoom * factor)
	if z == s.Zoom {
		return s, false
	}

	ratio := z / s.Zoom
	s.Pan = Point{
		X: s.Pan.X - (p.X-s.Pan.X)*(ratio-1),
		Y: s.Pan.Y - (p.Y-s.Pan.Y)*(ratio-1),
	}
	s.Zoom = z
	return s, true
}

// PanBounds limits dragging. Each pan component is confined to
// ±max(0, (Surface - Viewport) / 2).
type PanBounds struct {
	Surface  Size
	Viewport Size
}

func (b PanBounds) clamp(p Point) Point {
	if b.Surface.Empty() {
		return p
	}
	mx := math.Max(0, (b.Surface.W-b.Viewport.W)/2)
	my := math.Max(0, (b.Surface.H-b.Viewport.H)/2)
	return Point{
		X: math.Max(-mx, math.Min(mx, p.X)),
		Y: math.Max(-my, math.Min(my, p.Y)),
	}
}

// DragOrigin returns the anchor to pass to PanBy for a drag starting at pointer.
func (s Session) DragOrigin(pointer Point) Point {
	return pointer.Sub(s.Pan)
}

// PanBy moves the surface so that it follows the pointer: pan = pointer - origin.
// When bounds is non-nil the result is clamped to it.
func (s Session) PanBy(origin, pointer Point, bounds *PanBounds) Session {
	pan := pointer.Sub(origin)
	if bounds != nil {
		pan = bounds.clamp(pan)
	}
	s.Pan = pan
	return s
}

// ImageToViewport maps an image-space point to viewport coordinates given the
// base scale (base width / natural width) of the current layout.
func (s Session) ImageToViewport(q Point, baseScale float64) Point {
	k := s.Zoom * baseScale
	return Point{X: s.Pan.X + q.X*k, Y: s.Pan.Y + q.Y*k}
}

// ViewportToImage is the inverse of ImageToViewport.
func (s Session) ViewportToImage(p Point, baseScale float64) Point {
	k := s.Zoom * baseScale
	return Point{X: (p.X - s.Pan.X) / k, Y: (p.Y - s.Pan.Y) / k}
}
