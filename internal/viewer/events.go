package viewer

import "github.com/ironsheep/detection-viewer/internal/view"

// Event is user input dispatched to the viewer.
type Event interface {
	isEvent()
}

// WheelEvent zooms one step anchored at Pos. DeltaY > 0 zooms out.
type WheelEvent struct {
	Pos    view.Point
	DeltaY float64
}

// Button is one of the toolbar controls.
type Button int

const (
	ButtonZoomIn Button = iota
	ButtonZoomOut
	ButtonFit
	ButtonZoom100
	ButtonReset
	ButtonFullscreen
)

var buttonNames = map[string]Button{
	"zoom_in":    ButtonZoomIn,
	"zoom_out":   ButtonZoomOut,
	"fit":        ButtonFit,
	"zoom_100":   ButtonZoom100,
	"reset":      ButtonReset,
	"fullscreen": ButtonFullscreen,
}

// ParseButton maps a control name ("zoom_in", "fit", ...) to a Button.
func ParseButton(name string) (Button, bool) {
	b, ok := buttonNames[name]
	return b, ok
}

// ButtonEvent is a toolbar click.
type ButtonEvent struct {
	Button Button
}

// PointerAction is a mouse event kind.
type PointerAction int

const (
	PointerDown PointerAction = iota
	PointerMove
	PointerUp
	PointerLeave
)

// PrimaryButton is the mouse button that drags.
const PrimaryButton = 0

// PointerEvent is mouse input. Button is only meaningful for PointerDown.
type PointerEvent struct {
	Action PointerAction
	Pos    view.Point
	Button int
}

// TouchAction is a touch event kind.
type TouchAction int

const (
	TouchStart TouchAction = iota
	TouchMove
	TouchEnd
)

// TouchEvent is touch input; Touches lists the active contact points.
// Only single-finger gestures pan.
type TouchEvent struct {
	Action  TouchAction
	Touches []view.Point
}

// KeyEvent is a key press, named like DOM key values ("Escape").
type KeyEvent struct {
	Key string
}

// ResizeEvent reports a new window size.
type ResizeEvent struct {
	Window view.Size
}

// ContainerEvent reports a new windowed container size. It applies from the
// next render cycle on.
type ContainerEvent struct {
	Container view.Size
}

func (WheelEvent) isEvent()     {}
func (ButtonEvent) isEvent()    {}
func (PointerEvent) isEvent()   {}
func (TouchEvent) isEvent()     {}
func (KeyEvent) isEvent()       {}
func (ResizeEvent) isEvent()    {}
func (ContainerEvent) isEvent() {}
