package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/view"
)

// Kind identifies which path produced a Surface.
type Kind int

const (
	KindRaster Kind = iota
	KindOverlay
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindRaster:
		return "raster"
	case KindOverlay:
		return "overlay"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

var (
	// ErrEmptyImage is returned for images with a zero natural dimension.
	ErrEmptyImage = errors.New("image has zero natural size")
	// ErrSurfaceTooLarge is returned when the zoomed surface would exceed
	// the configured pixel budget.
	ErrSurfaceTooLarge = errors.New("render surface exceeds pixel budget")
)

// RenderError reports a failed draw on one path.
type RenderError struct {
	Path Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s render failed: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Request carries everything a draw reads besides the image itself.
type Request struct {
	ImageURL  string
	Filename  string
	Boxes     []detection.Box
	Threshold float64
	View      view.Session
	// Container is the windowed display area; its height is the height cap
	// of the fit-to-container rule.
	Container view.Size
}

// Surface is the output of a draw.
type Surface struct {
	Kind Kind
	// Image holds the rendered pixels, Size truncated to whole pixels.
	Image *image.NRGBA
	// Natural is the source image size; zero for placeholders.
	Natural view.Size
	// Size is the logical size of Image: the zoomed surface for raster, the
	// element's display box for overlay.
	Size view.Size
	// Scale is the display scale still to be applied when composing: 1 for
	// raster and placeholder surfaces, the zoom for overlay surfaces.
	Scale float64
	// Drawn lists the boxes that were drawn, in draw order.
	Drawn []detection.Box
	// SVG is the vector overlay document; overlay surfaces only.
	SVG []byte
}

// Renderer draws one frame of a record.
type Renderer interface {
	Draw(ctx context.Context, img image.Image, req Request) (*Surface, error)
}

func naturalSize(img image.Image) view.Size {
	b := img.Bounds()
	return view.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// surfacePixels truncates s to a pixel buffer size of at least 1x1.
func surfacePixels(s view.Size) (int, int) {
	w, h := s.Pixels()
	return max(w, 1), max(h, 1)
}
