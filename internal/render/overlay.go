package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"image"
	"image/color"
	"math"
	"unicode/utf16"

	svg "github.com/ajstarks/svgo"
	dimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/imaging"
	"github.com/ironsheep/detection-viewer/internal/view"
)

// Overlay geometry in natural image units.
const (
	overlayStroke     = 3
	overlayChipHeight = 20
	overlayCharWidth  = 8
	overlayChipExtra  = 20
	overlayTextInset  = 5
	overlayFontSize   = 12
)

// chipWidth approximates a caption chip as 8 units per UTF-16 code unit of
// the label plus 20. The caption is not measured.
func chipWidth(label string) int {
	return len(utf16.Encode([]rune(label)))*overlayCharWidth + overlayChipExtra
}

// Overlay is the fallback render path. The image is shown at its display
// box (BaseSize at zoom 1) and the boxes are described in natural image
// coordinates; zoom and pan are one transform applied to both.
type Overlay struct {
	filter dimaging.ResampleFilter
}

// NewOverlay creates an overlay renderer resampling with filter.
func NewOverlay(filter dimaging.ResampleFilter) *Overlay {
	return &Overlay{filter: filter}
}

// Draw produces the overlay SVG document and a raster preview of the element
// with the overlay painted over it. The preview has Scale set to the zoom so
// that Compose applies the display transform.
func (o *Overlay) Draw(ctx context.Context, img image.Image, req Request) (*Surface, error) {
	natural := naturalSize(img)
	if natural.Empty() {
		return nil, &RenderError{Path: KindOverlay, Err: ErrEmptyImage}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	display := view.BaseSize(natural, req.Container, req.View.Fullscreen)
	w, h := surfacePixels(display)
	dst := dimaging.Resize(img, w, h, o.filter)
	drawn := detection.Filter(req.Boxes, req.Threshold)

	if len(drawn) > 0 {
		if err := paintOverlay(dst, drawn, display.W/natural.W, display.H/natural.H); err != nil {
			return nil, &RenderError{Path: KindOverlay, Err: err}
		}
	}

	return &Surface{
		Kind:    KindOverlay,
		Image:   dst,
		Natural: natural,
		Size:    display,
		Scale:   req.View.Zoom,
		Drawn:   drawn,
		SVG:     overlaySVG(req, natural, display, drawn),
	}, nil
}

// paintOverlay rasterizes the overlay scene onto the element image, scaling
// natural units by (sx, sy).
func paintOverlay(dst *image.NRGBA, drawn []detection.Box, sx, sy float64) error {
	ff, err := openFaces(math.Max(1, overlayFontSize*sy))
	if err != nil {
		return err
	}
	defer ff.Close()

	for _, b := range drawn {
		c := imaging.ColorFor(b.Label)
		x1, y1 := b.Rect.X1, b.Rect.Y1
		strokeRect(dst, x1*sx, y1*sy, b.Rect.Width()*sx, b.Rect.Height()*sy, overlayStroke*sx, c.NRGBA(255))
		fillRect(dst, rectF{
			x0: x1 * sx,
			y0: (y1 - overlayChipHeight) * sy,
			x1: (x1 + float64(chipWidth(b.Label))) * sx,
			y1: y1 * sy,
		}, c.NRGBA(chipAlpha))
		drawText(dst, ff.bold, (x1+overlayTextInset)*sx, (y1-overlayTextInset)*sy, b.Caption(), color.White)
	}
	return nil
}

// displayTransform is the CSS-equivalent translate(pan) scale(zoom) about the
// element center, expressed in the SVG's natural-unit user space.
func displayTransform(s view.Session, natural, display view.Size) string {
	ux, uy := natural.W/display.W, natural.H/display.H
	cx, cy := natural.W/2, natural.H/2
	return fmt.Sprintf("translate(%g,%g) translate(%g,%g) scale(%g) translate(%g,%g)",
		s.Pan.X*ux, s.Pan.Y*uy, cx, cy, s.Zoom, -cx, -cy)
}

func overlaySVG(req Request, natural, display view.Size, drawn []detection.Box) []byte {
	var buf bytes.Buffer
	nw, nh := int(natural.W), int(natural.H)

	canvas := svg.New(&buf)
	canvas.Startview(int(math.Round(display.W)), int(math.Round(display.H)), 0, 0, nw, nh)
	canvas.Gtransform(displayTransform(req.View, natural, display))
	if req.ImageURL != "" {
		canvas.Image(0, 0, nw, nh, html.EscapeString(req.ImageURL))
	}
	for _, b := range drawn {
		c := imaging.ColorFor(b.Label).String()
		x1, y1 := b.Rect.X1, b.Rect.Y1
		svgRect(canvas, x1, y1, b.Rect.Width(), b.Rect.Height(),
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:%d", c, overlayStroke))
		svgRect(canvas, x1, y1-overlayChipHeight, float64(chipWidth(b.Label)), overlayChipHeight,
			fmt.Sprintf("fill:%s;fill-opacity:0.8", c))
		fmt.Fprintf(canvas.Writer, "<text x=\"%g\" y=\"%g\" style=\"%s\">%s</text>\n",
			x1+overlayTextInset, y1-overlayTextInset,
			fmt.Sprintf("fill:white;font-size:%dpx;font-weight:bold", overlayFontSize),
			html.EscapeString(b.Caption()))
	}
	canvas.Gend()
	canvas.End()

	return buf.Bytes()
}

// svgRect writes a rect with fractional coordinates; svgo's Rect only takes
// integers and boxes are in sub-pixel natural units.
func svgRect(canvas *svg.SVG, x, y, w, h float64, style string) {
	fmt.Fprintf(canvas.Writer, "<rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" style=\"%s\"/>\n", x, y, w, h, style)
}
