package detection

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rect is an axis-aligned rectangle in image-space pixel coordinates.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2" validate:"gtfield=X1"`
	Y2 float64 `json:"y2" validate:"gtfield=Y1"`
}

// Width returns X2 - X1.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Box is one labeled, confidence-scored bounding rectangle over an image.
//
// The JSON shape matches the detection dataset:
//
//	{"box": {"x1": 10, "y1": 20, "x2": 110, "y2": 90}, "label": "car", "confidence": 0.91}
type Box struct {
	Rect       Rect    `json:"box"`
	Label      string  `json:"label" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Percent returns the confidence as a rounded whole percentage.
func (b Box) Percent() int {
	return int(math.Round(b.Confidence * 100))
}

// Caption returns the text drawn next to a box, e.g. "car (91%)".
func (b Box) Caption() string {
	return fmt.Sprintf("%s (%d%%)", b.Label, b.Percent())
}

// Record is an image together with its detections. The viewer only ever reads it.
type Record struct {
	ImageURL string `json:"imageUrl" validate:"required"`
	Filename string `json:"filename"`
	Boxes    []Box  `json:"boxes" validate:"dive"`
}

var validate = validator.New()

// Validate checks box geometry, labels and confidence ranges.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid record %q: %w", r.ImageURL, err)
	}
	return nil
}

// FilenameFromURL returns the last path segment of an image URL, the way the
// dataset names images.
func FilenameFromURL(imageURL string) string {
	if i := strings.LastIndex(imageURL, "/"); i >= 0 {
		return imageURL[i+1:]
	}
	return imageURL
}
