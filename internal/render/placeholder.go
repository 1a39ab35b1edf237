package render

import (
	"image/color"

	dimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/detection-viewer/internal/view"
)

// Placeholder panel layout.
const (
	PlaceholderWidth  = 400
	PlaceholderHeight = 300
)

var (
	placeholderBackground = color.NRGBA{R: 0xf8, G: 0xf9, B: 0xfa, A: 0xff}
	placeholderForeground = color.NRGBA{R: 0xdc, G: 0x35, B: 0x45, A: 0xff}
)

// Placeholder returns the flat panel shown in place of a failed raster draw:
// a 400x300 light panel with the failure notice and filename centered in red.
func Placeholder(filename string) (*Surface, error) {
	dst := dimaging.New(PlaceholderWidth, PlaceholderHeight, placeholderBackground)

	title, err := openFaces(16)
	if err != nil {
		return nil, &RenderError{Path: KindPlaceholder, Err: err}
	}
	defer title.Close()
	body, err := openFaces(12)
	if err != nil {
		return nil, &RenderError{Path: KindPlaceholder, Err: err}
	}
	defer body.Close()

	const cx = PlaceholderWidth / 2
	lines := []struct {
		faces *faces
		y     float64
		text  string
	}{
		{title, 140, "Canvas loading failed"},
		{body, 160, "Trying image fallback..."},
		{body, 180, filename},
	}
	for _, l := range lines {
		w := measure(l.faces.regular, l.text)
		drawText(dst, l.faces.regular, cx-w/2, l.y, l.text, placeholderForeground)
	}

	return &Surface{
		Kind:  KindPlaceholder,
		Image: dst,
		Size:  view.Size{W: PlaceholderWidth, H: PlaceholderHeight},
		Scale: 1,
	}, nil
}
