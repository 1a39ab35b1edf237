package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	dimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/imaging"
	"github.com/ironsheep/detection-viewer/internal/view"
)

// chipAlpha is the 80% opacity of label chips.
const chipAlpha = 204

// Raster is the primary render path: one bitmap holding the image stretched
// to the zoomed surface with the boxes and label chips painted on top.
type Raster struct {
	filter    dimaging.ResampleFilter
	maxPixels int
}

// NewRaster creates a raster renderer resampling with filter. Surfaces with
// more than maxPixels pixels fail with ErrSurfaceTooLarge; zero means no
// limit.
func NewRaster(filter dimaging.ResampleFilter, maxPixels int) *Raster {
	return &Raster{filter: filter, maxPixels: maxPixels}
}

// Draw renders one raster frame.
//
// The surface is BaseSize(natural, container) scaled by zoom. Each box that
// passes the threshold is drawn in input order: a stroked rectangle of width
// max(2, 3*min(zoom, 1)), then a chip of the label color at 80% opacity sized
// to the caption plus padding max(2, 4*min(zoom, 1)), sitting on the box's
// top edge, then the caption in white bold at size
// clamp(14*min(zoom, 1.5), 10, 18).
func (r *Raster) Draw(ctx context.Context, img image.Image, req Request) (*Surface, error) {
	natural := naturalSize(img)
	if natural.Empty() {
		return nil, &RenderError{Path: KindRaster, Err: ErrEmptyImage}
	}

	size := req.View.SurfaceSize(natural, req.Container)
	w, h := surfacePixels(size)
	if r.maxPixels > 0 && w*h > r.maxPixels {
		return nil, &RenderError{
			Path: KindRaster,
			Err:  fmt.Errorf("%w: %dx%d", ErrSurfaceTooLarge, w, h),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := dimaging.Resize(img, w, h, r.filter)
	drawn := detection.Filter(req.Boxes, req.Threshold)
	if len(drawn) == 0 {
		return r.surface(dst, natural, size, drawn), nil
	}

	zoom := req.View.Zoom
	lineWidth := math.Max(2, 3*math.Min(zoom, 1))
	fontSize := math.Max(10, math.Min(18, 14*math.Min(zoom, 1.5)))
	pad := math.Max(2, 4*math.Min(zoom, 1))

	ff, err := openFaces(fontSize)
	if err != nil {
		return nil, &RenderError{Path: KindRaster, Err: err}
	}
	defer ff.Close()

	sx, sy := size.W/natural.W, size.H/natural.H
	for _, b := range drawn {
		c := imaging.ColorFor(b.Label)
		x1, y1 := b.Rect.X1*sx, b.Rect.Y1*sy
		strokeRect(dst, x1, y1, b.Rect.Width()*sx, b.Rect.Height()*sy, lineWidth, c.NRGBA(255))

		caption := b.Caption()
		tw := measure(ff.regular, caption)
		fillRect(dst, rectF{x1, y1 - fontSize - pad, x1 + tw + 2*pad, y1}, c.NRGBA(chipAlpha))
		drawText(dst, ff.bold, x1+pad, y1-pad, caption, color.White)
	}

	return r.surface(dst, natural, size, drawn), nil
}

func (r *Raster) surface(dst *image.NRGBA, natural, size view.Size, drawn []detection.Box) *Surface {
	return &Surface{
		Kind:    KindRaster,
		Image:   dst,
		Natural: natural,
		Size:    size,
		Scale:   1,
		Drawn:   drawn,
	}
}
