package detection

import (
	"fmt"
	"math"
)

// ThresholdStep is the slider granularity; ClampThreshold snaps to it.
const ThresholdStep = 0.01

// Preset is a named one-click threshold.
type Preset struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Presets lists the quick thresholds offered next to the slider.
var Presets = []Preset{
	{Name: "Show All", Value: 0.0},
	{Name: "Medium+ (50%)", Value: 0.5},
	{Name: "High (80%)", Value: 0.8},
	{Name: "Very High (95%)", Value: 0.95},
}

// Band classifies a threshold for display.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Color returns the hex color the band is shown in.
func (b Band) Color() string {
	switch b {
	case BandLow:
		return "#dc3545"
	case BandMedium:
		return "#ffc107"
	default:
		return "#28a745"
	}
}

// BandFor returns low below 0.3, medium below 0.7, high otherwise.
func BandFor(threshold float64) Band {
	switch {
	case threshold < 0.3:
		return BandLow
	case threshold < 0.7:
		return BandMedium
	default:
		return BandHigh
	}
}

// ClampThreshold clamps v to [0, 1] and snaps it to ThresholdStep.
// NaN maps to 0.
func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Round(v*100) / 100
}

// PresetByName looks a preset up by name or by its numeric string ("0.8").
func PresetByName(name string) (Preset, error) {
	for _, p := range Presets {
		if p.Name == name || fmt.Sprintf("%g", p.Value) == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown threshold preset: %s", name)
}

// FormatThreshold renders a threshold as a whole percentage, e.g. "80%".
func FormatThreshold(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}
