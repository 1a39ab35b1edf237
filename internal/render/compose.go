package render

import (
	"image"
	"image/color"
	"math"

	dimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/detection-viewer/internal/view"
)

// Compose places s into a viewport-sized frame filled with bg.
//
// The surface, scaled by s.Scale, is centered in the viewport and then moved
// by pan; placeholders are never panned. Only the visible part of the surface
// is resampled, so large zoomed surfaces compose in viewport-bounded time.
// A nil surface yields a blank frame.
func Compose(s *Surface, pan view.Point, viewport view.Size, bg color.Color, filter dimaging.ResampleFilter) *image.NRGBA {
	vw, vh := surfacePixels(viewport)
	frame := dimaging.New(vw, vh, bg)
	if s == nil || s.Image == nil {
		return frame
	}
	if s.Kind == KindPlaceholder {
		pan = view.Point{}
	}

	k := s.Scale
	if k <= 0 {
		k = 1
	}
	sb := s.Image.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	left := (float64(vw)-sw*k)/2 + pan.X
	top := (float64(vh)-sh*k)/2 + pan.Y

	// Visible source window in surface pixels.
	sx0 := clampf(math.Floor(-left/k), 0, sw)
	sy0 := clampf(math.Floor(-top/k), 0, sh)
	sx1 := clampf(math.Ceil((float64(vw)-left)/k), 0, sw)
	sy1 := clampf(math.Ceil((float64(vh)-top)/k), 0, sh)
	if sx1 <= sx0 || sy1 <= sy0 {
		return frame
	}

	src := dimaging.Crop(s.Image, image.Rect(
		sb.Min.X+int(sx0), sb.Min.Y+int(sy0),
		sb.Min.X+int(sx1), sb.Min.Y+int(sy1),
	))
	dw := int(math.Round((sx1 - sx0) * k))
	dh := int(math.Round((sy1 - sy0) * k))
	if dw < 1 || dh < 1 {
		return frame
	}
	if dw != src.Bounds().Dx() || dh != src.Bounds().Dy() {
		src = dimaging.Resize(src, dw, dh, filter)
	}

	pos := image.Pt(int(math.Round(left+sx0*k)), int(math.Round(top+sy0*k)))
	return dimaging.Overlay(frame, src, pos, 1.0)
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
