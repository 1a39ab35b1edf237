package imaging

import (
	"fmt"
	"image"
	"math"

	dimaging "github.com/disintegration/imaging"
)

// MaxCropScale bounds the magnification Crop applies.
const MaxCropScale = 8

// NamedRegion returns the part of bounds called name: a quadrant
// ("top-left", "top-right", "bottom-left", "bottom-right"), a half
// ("top-half", "bottom-half", "left-half", "right-half") or "center",
// the middle 50% in each direction.
func NamedRegion(bounds image.Rectangle, name string) (image.Rectangle, error) {
	w, h := bounds.Dx(), bounds.Dy()
	midX, midY := w/2, h/2

	var r image.Rectangle
	switch name {
	case "top-left":
		r = image.Rect(0, 0, midX, midY)
	case "top-right":
		r = image.Rect(midX, 0, w, midY)
	case "bottom-left":
		r = image.Rect(0, midY, midX, h)
	case "bottom-right":
		r = image.Rect(midX, midY, w, h)
	case "top-half":
		r = image.Rect(0, 0, w, midY)
	case "bottom-half":
		r = image.Rect(0, midY, w, h)
	case "left-half":
		r = image.Rect(0, 0, midX, h)
	case "right-half":
		r = image.Rect(midX, 0, w, h)
	case "center":
		r = image.Rect(w/4, h/4, w-w/4, h-h/4)
	default:
		return image.Rectangle{}, fmt.Errorf("unknown region: %s", name)
	}
	return r.Add(bounds.Min), nil
}

// Crop cuts r out of img and resizes it by scale. Coordinates are relative
// to img's bounds. A scale of 0 or 1 keeps the cropped size.
func Crop(img image.Image, r image.Rectangle, scale float64, filter dimaging.ResampleFilter) (*image.NRGBA, error) {
	bounds := img.Bounds()
	abs := r.Add(bounds.Min)

	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	if !abs.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds %dx%d",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Dx(), bounds.Dy())
	}
	if scale < 0 || scale > MaxCropScale || math.IsNaN(scale) {
		return nil, fmt.Errorf("scale must be in (0, %d], got %v", MaxCropScale, scale)
	}

	cropped := dimaging.Crop(img, abs)
	if scale == 0 || scale == 1 {
		return cropped, nil
	}

	w := int(math.Max(1, math.Round(float64(r.Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(r.Dy())*scale)))
	return dimaging.Resize(cropped, w, h, filter), nil
}
