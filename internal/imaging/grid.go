package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	dimaging "github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultGridColor is semi-transparent red.
var DefaultGridColor = color.NRGBA{R: 255, A: 128}

// GridOptions controls DrawGrid.
type GridOptions struct {
	// Spacing is the distance between lines in pixels.
	Spacing int
	// Color of the lines; the zero value means DefaultGridColor.
	Color color.NRGBA
	// Labels tags every intersection with its "x,y" coordinates.
	Labels bool
}

var (
	gridLabelFG = image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	gridLabelBG = image.NewUniform(color.NRGBA{A: 180})
)

// DrawGrid returns a copy of img with a coordinate grid blended over it.
// Positions are measured from img's top-left corner, so the labels read
// directly as pointer coordinates.
func DrawGrid(img image.Image, opts GridOptions) (*image.NRGBA, error) {
	if opts.Spacing < 4 {
		return nil, fmt.Errorf("grid spacing must be at least 4, got %d", opts.Spacing)
	}
	c := opts.Color
	if c.A == 0 {
		c = DefaultGridColor
	}
	line := image.NewUniform(c)

	dst := dimaging.Clone(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	for x := opts.Spacing; x < w; x += opts.Spacing {
		draw.Draw(dst, image.Rect(x, 0, x+1, h), line, image.Point{}, draw.Over)
	}
	for y := opts.Spacing; y < h; y += opts.Spacing {
		draw.Draw(dst, image.Rect(0, y, w, y+1), line, image.Point{}, draw.Over)
	}

	if opts.Labels {
		face := basicfont.Face7x13
		for y := opts.Spacing; y < h; y += opts.Spacing {
			for x := opts.Spacing; x < w; x += opts.Spacing {
				drawGridLabel(dst, face, x+2, y+2, fmt.Sprintf("%d,%d", x, y))
			}
		}
	}

	return dst, nil
}

// drawGridLabel draws text on a dark tag whose top-left corner is (x, y).
func drawGridLabel(dst *image.NRGBA, face font.Face, x, y int, text string) {
	m := face.Metrics()
	width := font.MeasureString(face, text).Ceil()
	height := (m.Ascent + m.Descent).Ceil()

	draw.Draw(dst, image.Rect(x-1, y-1, x+width+1, y+height+1), gridLabelBG, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  gridLabelFG,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + m.Ascent},
	}
	d.DrawString(text)
}
