package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBAColor represents an RGBA color with 8-bit components including alpha.
//
// The alpha component represents opacity:
//   - 0 = fully transparent
//   - 255 = fully opaque
type RGBAColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
	A uint8 `json:"a"` // Alpha/opacity component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
//
// Components are whole numbers, the way label colors are specified:
//   - H: 0-359 degrees (0=red, 120=green, 240=blue)
//   - S: 0-100 percent (0=gray, 100=vivid)
//   - L: 0-100 percent (0=black, 50=normal, 100=white)
type HSLColor struct {
	H int `json:"h"`
	S int `json:"s"`
	L int `json:"l"`
}

// String formats the color as a CSS hsl() value, e.g. "hsl(340, 93%, 46%)".
func (c HSLColor) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.H, c.S, c.L)
}

func (c HSLColor) toColorful() colorful.Color {
	return colorful.Hsl(float64(c.H), float64(c.S)/100, float64(c.L)/100).Clamped()
}

// NRGBA converts the color to 8-bit RGB with the given straight alpha.
func (c HSLColor) NRGBA(alpha uint8) color.NRGBA {
	r, g, b := c.toColorful().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}

// Hex returns the color as "#rrggbb".
func (c HSLColor) Hex() string {
	return c.toColorful().Hex()
}

// ColorFor returns the stable display color of a detection label.
//
// The label is hashed over its UTF-16 code units with
// hash = c + ((hash << 5) - hash), where the shift operates on the 32-bit
// truncation of hash and the subtraction does not. The color is then:
//
//	hue        = |hash| mod 360
//	saturation = 70 + |int32(hash) >> 8| mod 30
//	lightness  = 45 + |int32(hash) >> 16| mod 20
//
// Equal labels always map to equal colors. The empty label maps to
// hsl(0, 70%, 45%).
func ColorFor(label string) HSLColor {
	h := labelHash(label)
	return HSLColor{
		H: int(abs64(h) % 360),
		S: 70 + int(abs64(int64(int32(h)>>8))%30),
		L: 45 + int(abs64(int64(int32(h)>>16))%20),
	}
}

func labelHash(label string) int64 {
	var hash int64
	for _, c := range utf16.Encode([]rune(label)) {
		hash = int64(c) + (int64(int32(hash)<<5) - hash)
	}
	return hash
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ColorResult contains a sampled pixel in several representations.
type ColorResult struct {
	Hex  string    `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGBA RGBAColor `json:"rgba"` // RGBA components with alpha
	HSL  HSLColor  `json:"hsl"`  // HSL representation, rounded
}

// SampleColor reads the pixel at (x, y).
//
// Coordinates are relative to the image's bounds origin. Frames produced by
// the viewer always start at (0, 0), so callers can pass viewport coordinates
// directly.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	px, py := bounds.Min.X+x, bounds.Min.Y+y
	if !(image.Point{X: px, Y: py}.In(bounds)) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	nc := color.NRGBAModel.Convert(img.At(px, py)).(color.NRGBA)
	h, s, l := colorful.Color{
		R: float64(nc.R) / 255,
		G: float64(nc.G) / 255,
		B: float64(nc.B) / 255,
	}.Hsl()

	return &ColorResult{
		Hex:  fmt.Sprintf("#%02X%02X%02X", nc.R, nc.G, nc.B),
		RGBA: RGBAColor{R: nc.R, G: nc.G, B: nc.B, A: nc.A},
		HSL: HSLColor{
			H: int(math.Round(h)) % 360,
			S: int(math.Round(s * 100)),
			L: int(math.Round(l * 100)),
		},
	}, nil
}

// ParseHexColor parses a hex color string like "#FF0000" or "#FF000080".
// The leading '#' is optional. Alpha is straight, not premultiplied.
func ParseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
