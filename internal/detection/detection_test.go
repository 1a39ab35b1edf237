package detection

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func box(label string, conf float64) Box {
	return Box{Rect: Rect{X1: 10, Y1: 10, X2: 20, Y2: 20}, Label: label, Confidence: conf}
}

func TestFilter(t *testing.T) {
	boxes := []Box{box("car", 0.9), box("dog", 0.3), box("car", 0.5), box("pole", 0.95)}

	tests := []struct {
		name      string
		threshold float64
		want      []string
	}{
		{"zero keeps all", 0, []string{"car", "dog", "car", "pole"}},
		{"inclusive boundary", 0.5, []string{"car", "car", "pole"}},
		{"high", 0.95, []string{"pole"}},
		{"above all", 0.96, nil},
		{"one keeps none", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(boxes, tt.threshold)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%v): got %d boxes, want %d", tt.threshold, len(got), len(tt.want))
			}
			for i, b := range got {
				if b.Label != tt.want[i] {
					t.Errorf("box %d: got %s, want %s", i, b.Label, tt.want[i])
				}
				if b.Confidence < tt.threshold {
					t.Errorf("box %d below threshold: %v < %v", i, b.Confidence, tt.threshold)
				}
			}
			if n := CountVisible(boxes, tt.threshold); n != len(tt.want) {
				t.Errorf("CountVisible: got %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestFilter_DoesNotAlias(t *testing.T) {
	boxes := []Box{box("car", 0.9)}
	got := Filter(boxes, 0)
	got[0].Label = "changed"
	if boxes[0].Label != "car" {
		t.Error("Filter result aliases the input slice")
	}
}

func TestBox_Caption(t *testing.T) {
	tests := []struct {
		conf float64
		want string
	}{
		{0.9, "car (90%)"},
		{0.456, "car (46%)"},
		{0.004, "car (0%)"},
		{1, "car (100%)"},
	}
	for _, tt := range tests {
		if got := box("car", tt.conf).Caption(); got != tt.want {
			t.Errorf("Caption(%v): got %q, want %q", tt.conf, got, tt.want)
		}
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := Record{ImageURL: "https://example.com/a.jpg", Boxes: []Box{box("car", 0.5)}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	tests := []struct {
		name string
		rec  Record
	}{
		{"missing url", Record{Boxes: []Box{box("car", 0.5)}}},
		{"empty label", Record{ImageURL: "u", Boxes: []Box{box("", 0.5)}}},
		{"confidence above one", Record{ImageURL: "u", Boxes: []Box{box("car", 1.5)}}},
		{"negative confidence", Record{ImageURL: "u", Boxes: []Box{box("car", -0.1)}}},
		{"inverted x", Record{ImageURL: "u", Boxes: []Box{{Rect: Rect{X1: 20, Y1: 0, X2: 10, Y2: 5}, Label: "a", Confidence: 1}}}},
		{"zero height", Record{ImageURL: "u", Boxes: []Box{{Rect: Rect{X1: 0, Y1: 5, X2: 10, Y2: 5}, Label: "a", Confidence: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rec.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://store.example.net/images/pole_0001.jpg", "pole_0001.jpg"},
		{"pole.png", "pole.png"},
		{"https://example.com/dir/", ""},
	}
	for _, tt := range tests {
		if got := FilenameFromURL(tt.url); got != tt.want {
			t.Errorf("FilenameFromURL(%q): got %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestClampThreshold(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.123, 0.12},
		{0.125, 0.13},
		{0.8, 0.8},
		{1.2, 1},
	}
	for _, tt := range tests {
		if got := ClampThreshold(tt.in); got != tt.want {
			t.Errorf("ClampThreshold(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		v    float64
		want Band
	}{
		{0, BandLow},
		{0.29, BandLow},
		{0.3, BandMedium},
		{0.69, BandMedium},
		{0.7, BandHigh},
		{1, BandHigh},
	}
	for _, tt := range tests {
		if got := BandFor(tt.v); got != tt.want {
			t.Errorf("BandFor(%v): got %v, want %v", tt.v, got, tt.want)
		}
	}
	if BandLow.Color() != "#dc3545" || BandHigh.Color() != "#28a745" {
		t.Error("unexpected band colors")
	}
}

func TestPresetByName(t *testing.T) {
	p, err := PresetByName("High (80%)")
	if err != nil || p.Value != 0.8 {
		t.Errorf("by name: got %v, %v", p, err)
	}
	p, err = PresetByName("0.95")
	if err != nil || p.Value != 0.95 {
		t.Errorf("by value: got %v, %v", p, err)
	}
	if _, err := PresetByName("0.3"); err == nil {
		t.Error("expected error for unknown preset")
	}
	if FormatThreshold(0.5) != "50%" {
		t.Errorf("FormatThreshold: got %s", FormatThreshold(0.5))
	}
}

const testDataset = `[
  {"image": "https://example.com/img/pole_a.jpg", "bboxes": [
    {"box": {"x1": 1, "y1": 2, "x2": 30, "y2": 40}, "label": "Crossarm", "confidence": 0.91},
    {"box": {"x1": 5, "y1": 5, "x2": 9, "y2": 9}, "label": "insulator", "confidence": 0.42},
    {"box": {"x1": 6, "y1": 6, "x2": 9, "y2": 9}, "label": "insulator", "confidence": 0.97}
  ]},
  {"image": "https://example.com/img/tower_b.jpg", "bboxes": [
    {"box": {"x1": 1, "y1": 1, "x2": 2, "y2": 2}, "label": "tower", "confidence": 0.2}
  ]},
  {"image": "https://example.com/img/c.jpg", "bboxes": []},
  {"image": "https://example.com/img/d.jpg", "bboxes": []},
  {"image": "https://example.com/img/e.jpg", "bboxes": []},
  {"image": "https://example.com/img/f.jpg", "bboxes": []},
  {"image": "https://example.com/img/g.jpg", "bboxes": []}
]`

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(testDataset))
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if c.Len() != 7 {
		t.Fatalf("Len: got %d, want 7", c.Len())
	}

	e, ok := c.Get(0)
	if !ok {
		t.Fatal("Get(0) missing")
	}
	if e.Filename != "pole_a.jpg" {
		t.Errorf("Filename: got %s", e.Filename)
	}
	if e.BoxCount != 3 {
		t.Errorf("BoxCount: got %d", e.BoxCount)
	}
	if len(e.UniqueLabels) != 2 || e.UniqueLabels[0] != "Crossarm" || e.UniqueLabels[1] != "insulator" {
		t.Errorf("UniqueLabels: got %v", e.UniqueLabels)
	}
	if got := e.FilteredCount(0.9); got != 2 {
		t.Errorf("FilteredCount(0.9): got %d, want 2", got)
	}
	if got := e.VisibleLabels(0.95); len(got) != 1 || got[0] != "insulator" {
		t.Errorf("VisibleLabels(0.95): got %v", got)
	}
	if _, ok := c.Get(7); ok {
		t.Error("Get(7) should be out of range")
	}

	rec := e.Record()
	if rec.ImageURL != e.ImageURL || len(rec.Boxes) != 3 {
		t.Errorf("Record: got %+v", rec)
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	bad := `[{"image": "u", "bboxes": [{"box": {"x1": 5, "y1": 1, "x2": 1, "y2": 2}, "label": "x", "confidence": 0.5}]}]`
	if _, err := LoadCatalog(strings.NewReader(bad)); err == nil {
		t.Error("expected error for inverted box")
	}
	if _, err := LoadCatalog(strings.NewReader("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(testDataset), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile failed: %v", err)
	}
	if c.Len() != 7 {
		t.Errorf("Len: got %d", c.Len())
	}
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCatalog_Search(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(testDataset))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		term string
		want int
	}{
		{"", 7},
		{"POLE", 1},
		{"crossarm", 1},
		{"tower", 1},
		{".jpg", 7},
		{"nothing", 0},
	}
	for _, tt := range tests {
		if got := len(c.Search(tt.term)); got != tt.want {
			t.Errorf("Search(%q): got %d, want %d", tt.term, got, tt.want)
		}
	}
}

func TestDisplayed(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(testDataset))
	if err != nil {
		t.Fatal(err)
	}
	all := c.Entries()

	first, more := Displayed(all, 0)
	if len(first) != ItemsPerPage || !more {
		t.Errorf("page 0: got %d entries, more=%v", len(first), more)
	}
	second, more := Displayed(all, 1)
	if len(second) != 7 || more {
		t.Errorf("page 1: got %d entries, more=%v", len(second), more)
	}
	if got := TotalVisible(first, 0.5); got != 2 {
		t.Errorf("TotalVisible: got %d, want 2", got)
	}
}
