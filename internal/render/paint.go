package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

type fontSet struct {
	regular *opentype.Font
	bold    *opentype.Font
}

var loadFonts = sync.OnceValues(func() (fontSet, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fontSet{}, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fontSet{}, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return fontSet{regular: regular, bold: bold}, nil
})

// faces is a regular/bold pair at one pixel size. Faces are not safe for
// concurrent use, so every draw opens its own.
type faces struct {
	regular font.Face
	bold    font.Face
}

func openFaces(size float64) (*faces, error) {
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	opts := &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone}
	regular, err := opentype.NewFace(fs.regular, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	bold, err := opentype.NewFace(fs.bold, opts)
	if err != nil {
		regular.Close()
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return &faces{regular: regular, bold: bold}, nil
}

func (f *faces) Close() {
	f.regular.Close()
	f.bold.Close()
}

// rectF is a rectangle with fractional edges, x0 < x1 and y0 < y1.
type rectF struct {
	x0, y0, x1, y1 float64
}

// fillRect paints r over dst with anti-aliased edges, blending with draw.Over.
func fillRect(dst draw.Image, r rectF, c color.Color) {
	b := dst.Bounds()
	x0 := math.Max(r.x0, float64(b.Min.X))
	y0 := math.Max(r.y0, float64(b.Min.Y))
	x1 := math.Min(r.x1, float64(b.Max.X))
	y1 := math.Min(r.y1, float64(b.Max.Y))
	if x1 <= x0 || y1 <= y0 {
		return
	}

	area := image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
	ox, oy := float64(area.Min.X), float64(area.Min.Y)

	z := vector.NewRasterizer(area.Dx(), area.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(x0-ox), float32(y0-oy))
	z.LineTo(float32(x1-ox), float32(y0-oy))
	z.LineTo(float32(x1-ox), float32(y1-oy))
	z.LineTo(float32(x0-ox), float32(y1-oy))
	z.ClosePath()
	z.Draw(dst, area, image.NewUniform(c), image.Point{})
}

// strokeRect outlines the rectangle (x, y, w, h) with a line of width lw
// centered on its edges. The four bands do not overlap, so translucent
// colors blend once.
func strokeRect(dst draw.Image, x, y, w, h, lw float64, c color.Color) {
	hw := lw / 2
	fillRect(dst, rectF{x - hw, y - hw, x + w + hw, y + hw}, c)
	fillRect(dst, rectF{x - hw, y + h - hw, x + w + hw, y + h + hw}, c)
	if h > lw {
		fillRect(dst, rectF{x - hw, y + hw, x + hw, y + h - hw}, c)
		fillRect(dst, rectF{x + w - hw, y + hw, x + w + hw, y + h - hw}, c)
	}
}

// measure returns the advance width of text in pixels.
func measure(face font.Face, text string) float64 {
	return float64(font.MeasureString(face, text)) / 64
}

// drawText draws text with its baseline starting at (x, y).
func drawText(dst draw.Image, face font.Face, x, y float64, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))},
	}
	d.DrawString(text)
}
