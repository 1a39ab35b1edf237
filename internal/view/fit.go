package view

import "math"

// DefaultMaxContainerHeight is the height budget of the windowed display.
const DefaultMaxContainerHeight = 600

// BaseSize returns the zoom-1 display size of an image.
//
// In fullscreen it is the natural size. Windowed, the image is fitted into
// the container preserving aspect ratio and never enlarged: when the image is
// wider than the container's aspect the width is min(container.W, natural.W),
// otherwise the height is min(container.H, natural.H).
func BaseSize(natural, container Size, fullscreen bool) Size {
	if fullscreen || natural.Empty() || container.Empty() {
		return natural
	}

	aspect := natural.W / natural.H
	if aspect > container.W/container.H {
		w := math.Min(container.W, natural.W)
		return Size{W: w, H: w / aspect}
	}
	h := math.Min(container.H, natural.H)
	return Size{W: h * aspect, H: h}
}

// SurfaceSize returns the rendered surface size: BaseSize scaled by zoom.
func (s Session) SurfaceSize(natural, container Size) Size {
	return BaseSize(natural, container, s.Fullscreen).Scale(s.Zoom)
}

// FitViewport returns the area zoom-to-fit fits into: the window in
// fullscreen, the container otherwise.
func FitViewport(container, window Size, fullscreen bool) Size {
	if fullscreen {
		return window
	}
	return container
}

// ZoomToFit sets zoom to min(viewport.W/natural.W, viewport.H/natural.H, 1)
// and clears pan. Fitting never enlarges past natural resolution. With an
// empty natural size or viewport the session is returned unchanged.
func (s Session) ZoomToFit(natural, viewport Size) Session {
	if natural.Empty() || viewport.Empty() {
		return s
	}
	z := math.Min(math.Min(viewport.W/natural.W, viewport.H/natural.H), 1)
	s.Zoom = ClampZoom(z)
	s.Pan = Point{}
	return s
}

// ZoomTo100 sets the zoom at which one image pixel maps to one surface pixel
// and clears pan. In fullscreen that is zoom 1; windowed it is
// natural.W / BaseSize.W.
func (s Session) ZoomTo100(natural, container Size) Session {
	if natural.Empty() {
		return s
	}
	z := 1.0
	if !s.Fullscreen {
		base := BaseSize(natural, container, false)
		if base.W > 0 {
			z = natural.W / base.W
		}
	}
	s.Zoom = ClampZoom(z)
	s.Pan = Point{}
	return s
}
