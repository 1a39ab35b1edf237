package viewer

import "github.com/ironsheep/detection-viewer/internal/view"

// Effect tells the viewer what an event requires.
type Effect int

const (
	// EffectNone: nothing visible changed.
	EffectNone Effect = iota
	// EffectRecompose: only pan changed; the rendered surface is reused.
	EffectRecompose
	// EffectRerender: zoom or display mode changed; a new cycle starts.
	EffectRerender
)

func (e Effect) String() string {
	switch e {
	case EffectRecompose:
		return "recompose"
	case EffectRerender:
		return "rerender"
	default:
		return "none"
	}
}

// Env is the layout the controller reads.
type Env struct {
	// Natural is the loaded image's size; empty while nothing is loaded.
	Natural view.Size
	// Container is the windowed display area.
	Container view.Size
	// Window is the fullscreen display area.
	Window view.Size
	// Surface is the displayed size of the current surface; empty if unknown.
	Surface view.Size
}

// Controller turns input events into session updates. It carries the
// ephemeral drag state and nothing else.
type Controller struct {
	dragging bool
	origin   view.Point
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// Reset cancels any drag.
func (c *Controller) Reset() {
	c.dragging = false
	c.origin = view.Point{}
}

// Handle applies ev to s.
func (c *Controller) Handle(s view.Session, ev Event, env Env) (view.Session, Effect) {
	next := s
	switch e := ev.(type) {
	case WheelEvent:
		next, _ = s.ZoomAtPoint(e.Pos, e.DeltaY)

	case ButtonEvent:
		next = c.button(s, e.Button, env)

	case PointerEvent:
		switch e.Action {
		case PointerDown:
			if e.Button == PrimaryButton {
				c.startDrag(s, e.Pos)
			}
		case PointerMove:
			next = c.drag(s, e.Pos, env)
		case PointerUp, PointerLeave:
			c.dragging = false
		}

	case TouchEvent:
		switch e.Action {
		case TouchStart:
			if len(e.Touches) == 1 {
				c.startDrag(s, e.Touches[0])
			}
		case TouchMove:
			if len(e.Touches) == 1 {
				next = c.drag(s, e.Touches[0], env)
			}
		case TouchEnd:
			c.dragging = false
		}

	case KeyEvent:
		if e.Key == "Escape" && s.Fullscreen {
			c.Reset()
			next = s.ExitFullscreen()
		}

	case ResizeEvent:
		if s.Fullscreen {
			return s, EffectRerender
		}
	}

	return next, effectOf(s, next)
}

func (c *Controller) button(s view.Session, b Button, env Env) view.Session {
	switch b {
	case ButtonZoomIn:
		return s.ZoomIn()
	case ButtonZoomOut:
		return s.ZoomOut()
	case ButtonFit:
		return s.ZoomToFit(env.Natural, view.FitViewport(env.Container, env.Window, s.Fullscreen))
	case ButtonZoom100:
		return s.ZoomTo100(env.Natural, env.Container)
	case ButtonReset:
		return s.Reset()
	case ButtonFullscreen:
		c.Reset()
		return s.ToggleFullscreen()
	}
	return s
}

func (c *Controller) startDrag(s view.Session, p view.Point) {
	c.dragging = true
	c.origin = s.DragOrigin(p)
}

func (c *Controller) drag(s view.Session, p view.Point, env Env) view.Session {
	if !c.dragging {
		return s
	}
	var bounds *view.PanBounds
	if s.Fullscreen && !env.Surface.Empty() {
		bounds = &view.PanBounds{Surface: env.Surface, Viewport: env.Window}
	}
	return s.PanBy(c.origin, p, bounds)
}

func effectOf(prev, next view.Session) Effect {
	switch {
	case prev.Zoom != next.Zoom || prev.Fullscreen != next.Fullscreen:
		return EffectRerender
	case prev.Pan != next.Pan:
		return EffectRecompose
	default:
		return EffectNone
	}
}
