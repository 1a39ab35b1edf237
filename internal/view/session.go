package view

import (
	"fmt"
	"math"
)

// Point is a position or offset in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width and height in pixels. Sizes are fractional; raster buffers
// truncate them.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Scale returns s multiplied by k.
func (s Size) Scale(k float64) Size { return Size{W: s.W * k, H: s.H * k} }

// Pixels returns the integer buffer dimensions for s, truncating the way a
// canvas does when assigned fractional sizes.
func (s Size) Pixels() (int, int) { return int(s.W), int(s.H) }

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", int(math.Round(s.W)), int(math.Round(s.H)))
}

// Session is the mutable view state of one displayed record.
//
// Zoom is always within [MinZoom, MaxZoom]. Pan is the translation applied to
// the rendered surface inside the viewport. Every operation in this package
// returns a new Session and leaves the receiver untouched.
type Session struct {
	Zoom       float64 `json:"zoom"`
	Pan        Point   `json:"pan"`
	Fullscreen bool    `json:"fullscreen"`
}

// NewSession returns the initial view: zoom 1, no pan, windowed.
func NewSession() Session {
	return Session{Zoom: 1}
}

// Reset returns the session at zoom 1 with no pan, keeping the display mode.
func (s Session) Reset() Session {
	return Session{Zoom: 1, Fullscreen: s.Fullscreen}
}

// ToggleFullscreen flips the display mode and resets zoom and pan.
func (s Session) ToggleFullscreen() Session {
	return Session{Zoom: 1, Fullscreen: !s.Fullscreen}
}

// ExitFullscreen leaves fullscreen mode. It is a no-op when windowed.
func (s Session) ExitFullscreen() Session {
	if !s.Fullscreen {
		return s
	}
	return s.ToggleFullscreen()
}

// ZoomPercent returns the zoom as a rounded percentage.
func (s Session) ZoomPercent() int {
	return int(math.Round(s.Zoom * 100))
}

// Cursor returns the pointer cursor for the current state: "grabbing" while
// dragging, "grab" when the surface can be panned, "default" otherwise.
func (s Session) Cursor(dragging bool) string {
	switch {
	case dragging:
		return "grabbing"
	case s.Zoom > 1 || s.Fullscreen:
		return "grab"
	default:
		return "default"
	}
}

// InfoLine describes the rendered surface, e.g. "Canvas: 500×400px (Zoom: 100%)".
func (s Session) InfoLine(surface Size) string {
	return fmt.Sprintf("Canvas: %d×%dpx (Zoom: %d%%)",
		int(math.Round(surface.W)), int(math.Round(surface.H)), s.ZoomPercent())
}
