package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	jsoniter "github.com/json-iterator/go"
)

type stateResult struct {
	Filename  string  `json:"filename"`
	ImageURL  string  `json:"imageUrl"`
	Threshold float64 `json:"threshold"`
	View      struct {
		Zoom float64 `json:"zoom"`
		Pan  struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"pan"`
		Fullscreen bool `json:"fullscreen"`
	} `json:"view"`
	Surface *struct {
		Kind   string                `json:"kind"`
		Width  int                   `json:"width"`
		Height int                   `json:"height"`
		Drawn  []jsoniter.RawMessage `json:"drawn"`
	} `json:"surface"`
	Info   string `json:"info"`
	Status struct {
		Phase   string `json:"phase"`
		Title   string `json:"title"`
		Actions []struct {
			ID string `json:"id"`
		} `json:"actions"`
	} `json:"status"`
}

func callTool(t *testing.T, s *Server, name, args string) *MCPResponse {
	t.Helper()
	if args == "" {
		args = "{}"
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  jsoniter.RawMessage(fmt.Sprintf(`{"name":%q,"arguments":%s}`, name, args)),
	})
	if resp == nil {
		t.Fatalf("%s: nil response", name)
	}
	return resp
}

// mustCall runs a tool that is expected to succeed and decodes its result.
func mustCall(t *testing.T, s *Server, name, args string, v interface{}) {
	t.Helper()
	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s failed: %s (%v)", name, resp.Error.Message, resp.Error.Data)
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if content[0]["type"] != "text" {
		t.Fatalf("%s: content type %v", name, content[0]["type"])
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("%s: bad result: %v", name, err)
	}
}

// wantError runs a tool that is expected to fail with code.
func wantError(t *testing.T, s *Server, name, args string, code int) string {
	t.Helper()
	resp := callTool(t, s, name, args)
	if resp.Error == nil {
		t.Fatalf("%s: expected error %d, got result", name, code)
	}
	if resp.Error.Code != code {
		t.Fatalf("%s: code %d, want %d (%v)", name, resp.Error.Code, code, resp.Error.Data)
	}
	data, _ := resp.Error.Data.(string)
	return data
}

func waitState(t *testing.T, s *Server) stateResult {
	t.Helper()
	var st stateResult
	mustCall(t, s, "viewer_wait", `{"timeout_ms": 5000}`, &st)
	return st
}

// writeDataset writes eight entries: every frame has a car at 0.9 and the
// even frames also have a person at 0.4.
func writeDataset(t *testing.T) string {
	t.Helper()
	var items []string
	for i := 0; i < 8; i++ {
		boxes := `{"box": {"x1": 100, "y1": 100, "x2": 300, "y2": 300}, "label": "car", "confidence": 0.9}`
		if i%2 == 0 {
			boxes += `, {"box": {"x1": 400, "y1": 200, "x2": 500, "y2": 600}, "label": "person", "confidence": 0.4}`
		}
		items = append(items, fmt.Sprintf(`{"image": "https://example.com/img/frame_%d.jpg", "bboxes": [%s]}`, i, boxes))
	}
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte("["+strings.Join(items, ",")+"]"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestToolsCall_InvalidRequests(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	wantError(t, s, "image_crop", "", codeInvalidParams)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  jsoniter.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("bad params: got %+v", resp.Error)
	}

	if data := wantError(t, s, "viewer_open", `{"id": "seven"}`, codeToolFailed); !strings.Contains(data, "invalid arguments") {
		t.Errorf("bad argument type: got %q", data)
	}
}

func TestCatalogTools(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	if data := wantError(t, s, "catalog_search", "", codeToolFailed); !strings.Contains(data, "catalog_load") {
		t.Errorf("search before load: got %q", data)
	}
	wantError(t, s, "catalog_load", "", codeToolFailed)
	wantError(t, s, "catalog_load", `{"path": "/nonexistent/dataset.json"}`, codeToolFailed)

	var loaded map[string]interface{}
	mustCall(t, s, "catalog_load", fmt.Sprintf(`{"path": %q}`, writeDataset(t)), &loaded)
	if loaded["entries"] != float64(8) || loaded["pages"] != float64(2) {
		t.Errorf("load result: got %v", loaded)
	}

	tests := []struct {
		name         string
		tool         string
		args         string
		matches      int
		items        int
		hasMore      bool
		totalVisible int
	}{
		{"everything", "catalog_search", "", 8, 6, true, 12},
		{"second page", "catalog_page", `{"page": 1}`, 8, 8, false, 12},
		{"by label", "catalog_search", `{"term": "PERSON"}`, 4, 4, false, 8},
		{"by filename", "catalog_search", `{"term": "frame_3"}`, 1, 1, false, 1},
		{"no match", "catalog_page", `{"term": "truck", "page": 3}`, 0, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page CatalogPage
			mustCall(t, s, tt.tool, tt.args, &page)
			if page.Matches != tt.matches || len(page.Items) != tt.items || page.HasMore != tt.hasMore {
				t.Errorf("got matches=%d items=%d more=%v", page.Matches, len(page.Items), page.HasMore)
			}
			if page.TotalVisible != tt.totalVisible {
				t.Errorf("total visible: got %d, want %d", page.TotalVisible, tt.totalVisible)
			}
			if page.Threshold != "0%" {
				t.Errorf("threshold: got %q", page.Threshold)
			}
		})
	}

	wantError(t, s, "catalog_page", `{"page": -1}`, codeToolFailed)

	// Listing counts follow the viewer threshold.
	mustCall(t, s, "viewer_threshold", `{"value": 0.5}`, nil)
	var page CatalogPage
	mustCall(t, s, "catalog_search", `{"term": "frame_0"}`, &page)
	if page.TotalVisible != 1 || page.Threshold != "50%" {
		t.Fatalf("filtered page: got %+v", page)
	}
	item := page.Items[0]
	if item.BoxCount != 2 || item.FilteredCount != 1 || len(item.UniqueLabels) != 2 || len(item.VisibleLabels) != 1 {
		t.Errorf("item: got %+v", item)
	}
}

func TestViewerOpen(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	wantError(t, s, "viewer_open", "", codeToolFailed)
	wantError(t, s, "viewer_open", `{"id": 0}`, codeToolFailed)

	mustCall(t, s, "catalog_load", fmt.Sprintf(`{"path": %q}`, writeDataset(t)), nil)
	wantError(t, s, "viewer_open", `{"id": 42}`, codeToolFailed)

	mustCall(t, s, "viewer_open", `{"id": 2}`, nil)
	st := waitState(t, s)
	if st.Status.Phase != "loaded" || st.Filename != "frame_2.jpg" {
		t.Fatalf("open by id: got phase %q filename %q", st.Status.Phase, st.Filename)
	}
	if st.Surface == nil || st.Surface.Kind != "raster" || len(st.Surface.Drawn) != 2 {
		t.Errorf("surface: got %+v", st.Surface)
	}

	mustCall(t, s, "viewer_open", `{
		"image_url": "https://example.com/other/street.jpg",
		"filename": "Street",
		"boxes": [{"box": {"x1": 10, "y1": 10, "x2": 50, "y2": 50}, "label": "dog", "confidence": 0.2}]
	}`, nil)
	st = waitState(t, s)
	if st.Filename != "Street" || st.ImageURL != "https://example.com/other/street.jpg" {
		t.Errorf("open by url: got %q %q", st.Filename, st.ImageURL)
	}
	if st.Surface == nil || len(st.Surface.Drawn) != 1 {
		t.Errorf("surface: got %+v", st.Surface)
	}

	// Inverted boxes are rejected before anything is displayed.
	wantError(t, s, "viewer_open", `{
		"image_url": "https://example.com/bad.jpg",
		"boxes": [{"box": {"x1": 50, "y1": 10, "x2": 10, "y2": 50}, "label": "dog", "confidence": 0.2}]
	}`, codeToolFailed)
}

func TestViewerThresholdTools(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	tests := []struct {
		tool      string
		args      string
		value     float64
		formatted string
		band      string
		color     string
	}{
		{"viewer_threshold", `{"value": 0.1}`, 0.1, "10%", "low", "#dc3545"},
		{"viewer_threshold", `{"value": 1.7}`, 1, "100%", "high", "#28a745"},
		{"viewer_threshold", `{"value": -3}`, 0, "0%", "low", "#dc3545"},
		{"viewer_preset", `{"name": "Medium+ (50%)"}`, 0.5, "50%", "medium", "#ffc107"},
		{"viewer_preset", `{"name": "0.95"}`, 0.95, "95%", "high", "#28a745"},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			var got ThresholdResult
			mustCall(t, s, tt.tool, tt.args, &got)
			want := ThresholdResult{Value: tt.value, Formatted: tt.formatted, Band: tt.band, BandColor: tt.color}
			if got != want {
				t.Errorf("got %+v, want %+v", got, want)
			}
		})
	}

	wantError(t, s, "viewer_threshold", "", codeToolFailed)
	wantError(t, s, "viewer_preset", `{"name": "Ultra"}`, codeToolFailed)

	var st stateResult
	mustCall(t, s, "viewer_state", "", &st)
	if st.Threshold != 0.95 {
		t.Errorf("state threshold: got %v", st.Threshold)
	}
}

func TestViewerEvent(t *testing.T) {
	s, _ := newTestServer(t, "", nil)
	mustCall(t, s, "viewer_open", `{"image_url": "https://example.com/street.jpg"}`, nil)
	waitState(t, s)

	type eventResult struct {
		Effect string      `json:"effect"`
		State  stateResult `json:"state"`
	}

	var res eventResult
	mustCall(t, s, "viewer_event", `{"type": "button", "control": "zoom_in"}`, &res)
	if res.Effect != "rerender" || res.State.View.Zoom <= 1 {
		t.Errorf("zoom in: got effect %q zoom %v", res.Effect, res.State.View.Zoom)
	}
	waitState(t, s)

	mustCall(t, s, "viewer_event", `{"type": "pointer", "action": "down", "x": 10, "y": 10}`, &res)
	mustCall(t, s, "viewer_event", `{"type": "pointer", "action": "move", "x": 40, "y": 30}`, &res)
	if res.Effect != "recompose" || res.State.View.Pan.X != 30 || res.State.View.Pan.Y != 20 {
		t.Errorf("drag: got effect %q pan %+v", res.Effect, res.State.View.Pan)
	}
	mustCall(t, s, "viewer_event", `{"type": "pointer", "action": "up"}`, &res)

	mustCall(t, s, "viewer_event", `{"type": "button", "control": "reset"}`, &res)
	if res.State.View.Zoom != 1 || res.State.View.Pan.X != 0 || res.State.View.Pan.Y != 0 {
		t.Errorf("reset: got %+v", res.State.View)
	}
	waitState(t, s)

	mustCall(t, s, "viewer_event", `{"type": "button", "control": "fullscreen"}`, &res)
	if !res.State.View.Fullscreen {
		t.Error("fullscreen not entered")
	}
	waitState(t, s)
	mustCall(t, s, "viewer_event", `{"type": "key", "key": "Escape"}`, &res)
	if res.State.View.Fullscreen {
		t.Error("Escape did not leave fullscreen")
	}
	waitState(t, s)

	mustCall(t, s, "viewer_event", `{"type": "touch", "action": "start", "touches": [{"x": 5, "y": 5}]}`, &res)
	mustCall(t, s, "viewer_event", `{"type": "touch", "action": "move", "touches": [{"x": 15, "y": 25}]}`, &res)
	if res.State.View.Pan.X != 10 || res.State.View.Pan.Y != 20 {
		t.Errorf("touch drag: got pan %+v", res.State.View.Pan)
	}
	mustCall(t, s, "viewer_event", `{"type": "touch", "action": "end"}`, &res)

	mustCall(t, s, "viewer_event", `{"type": "wheel", "x": 0, "y": 0, "delta_y": 100}`, &res)
	if res.State.View.Zoom >= 1 {
		t.Errorf("wheel out: got zoom %v", res.State.View.Zoom)
	}
	waitState(t, s)

	bad := []string{
		`{"type": "swipe"}`,
		`{"type": "button", "control": "rotate"}`,
		`{"type": "pointer", "action": "hover"}`,
		`{"type": "touch", "action": "cancel"}`,
		`{"type": "resize", "width": 0, "height": 600}`,
		`{"type": "container", "width": 400}`,
	}
	for _, args := range bad {
		wantError(t, s, "viewer_event", args, codeToolFailed)
	}
}

func TestViewerFrameAndSample(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	wantError(t, s, "viewer_frame", "", codeToolFailed)

	mustCall(t, s, "viewer_open", `{"image_url": "https://example.com/street.jpg"}`, nil)
	waitState(t, s)

	var frame FrameResult
	mustCall(t, s, "viewer_frame", `{"width": 600, "height": 500}`, &frame)
	if frame.Width != 600 || frame.Height != 500 || frame.Path != "" {
		t.Errorf("frame: got %+v", frame)
	}
	data, err := base64.StdEncoding.DecodeString(frame.ImageBase64)
	if err != nil {
		t.Fatalf("bad base64: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("bad image: %v", err)
	}
	if format != "png" || cfg.Width != 600 || cfg.Height != 500 {
		t.Errorf("decoded: %s %dx%d", format, cfg.Width, cfg.Height)
	}

	path := filepath.Join(t.TempDir(), "frame.jpg")
	var savedFrame FrameResult
	mustCall(t, s, "viewer_frame", fmt.Sprintf(`{"width": 320, "height": 240, "path": %q, "quality": 80}`, path), &savedFrame)
	if savedFrame.Path != path || savedFrame.ImageBase64 != "" {
		t.Errorf("saved frame: got %+v", savedFrame)
	}
	saved, err := imgio.Open(path)
	if err != nil {
		t.Fatalf("saved frame unreadable: %v", err)
	}
	if b := saved.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("saved frame: got %dx%d", b.Dx(), b.Dy())
	}

	wantError(t, s, "viewer_frame", `{"width": -5}`, codeToolFailed)

	inspect := []struct {
		name string
		args string
		w, h int
	}{
		{"grid keeps size", `{"width": 600, "height": 500, "grid": 50, "grid_labels": true}`, 600, 500},
		{"region", `{"width": 600, "height": 500, "region": {"x1": 50, "y1": 50, "x2": 150, "y2": 100}}`, 100, 50},
		{"scaled region", `{"width": 600, "height": 500, "region": {"x1": 50, "y1": 50, "x2": 150, "y2": 100}, "scale": 2}`, 200, 100},
		{"quadrant", `{"width": 600, "height": 500, "quadrant": "center"}`, 300, 250},
	}
	for _, tt := range inspect {
		t.Run(tt.name, func(t *testing.T) {
			var got FrameResult
			mustCall(t, s, "viewer_frame", tt.args, &got)
			if got.Width != tt.w || got.Height != tt.h {
				t.Errorf("got %dx%d, want %dx%d", got.Width, got.Height, tt.w, tt.h)
			}
		})
	}

	for _, args := range []string{
		`{"grid": 2}`,
		`{"quadrant": "middle"}`,
		`{"scale": 2}`,
		`{"region": {"x1": 10, "y1": 10, "x2": 5, "y2": 20}}`,
		`{"region": {"x1": 0, "y1": 0, "x2": 10, "y2": 10}, "quadrant": "center"}`,
		`{"width": 600, "height": 500, "region": {"x1": 500, "y1": 0, "x2": 700, "y2": 10}}`,
	} {
		wantError(t, s, "viewer_frame", args, codeToolFailed)
	}

	samples := []struct {
		x, y int
		hex  string
	}{
		{0, 0, "#FFFFFF"},
		{300, 250, "#000000"},
	}
	for _, tt := range samples {
		var got struct {
			Hex string `json:"hex"`
		}
		mustCall(t, s, "viewer_sample", fmt.Sprintf(`{"x": %d, "y": %d, "width": 600, "height": 500}`, tt.x, tt.y), &got)
		if got.Hex != tt.hex {
			t.Errorf("sample (%d,%d): got %s, want %s", tt.x, tt.y, got.Hex, tt.hex)
		}
	}
	wantError(t, s, "viewer_sample", `{"x": 600, "y": 0, "width": 600, "height": 500}`, codeToolFailed)

	wantError(t, s, "viewer_overlay", "", codeToolFailed)
}

func TestViewerOverlayFallback(t *testing.T) {
	s, _ := newTestServer(t, "", nil)
	mustCall(t, s, "viewer_open", `{
		"image_url": "https://example.com/blocked.jpg",
		"boxes": [{"box": {"x1": 100, "y1": 100, "x2": 300, "y2": 300}, "label": "car", "confidence": 0.9}]
	}`, nil)

	st := waitState(t, s)
	if st.Status.Phase != "fallback-loaded" {
		t.Fatalf("phase: got %q", st.Status.Phase)
	}

	var overlay struct {
		SVG string `json:"svg"`
	}
	mustCall(t, s, "viewer_overlay", "", &overlay)
	if !strings.Contains(overlay.SVG, "<svg") || !strings.Contains(overlay.SVG, "car (90%)") {
		t.Errorf("overlay: got %q", overlay.SVG)
	}
}

func TestViewerRecoveryTools(t *testing.T) {
	s, m := newTestServer(t, "", nil)

	mustCall(t, s, "viewer_open", `{"image_url": "https://example.com/street.jpg"}`, nil)
	waitState(t, s)
	wantError(t, s, "viewer_retry", "", codeToolFailed)
	wantError(t, s, "viewer_fallback", "", codeToolFailed)

	mustCall(t, s, "viewer_open", `{"image_url": "https://example.com/missing.jpg"}`, nil)
	st := waitState(t, s)
	if st.Status.Phase != "fallback-failed" || st.Status.Title != "Image Loading Failed" {
		t.Fatalf("failure: got %+v", st.Status)
	}
	ids := make([]string, 0, len(st.Status.Actions))
	for _, a := range st.Status.Actions {
		ids = append(ids, a.ID)
	}
	if strings.Join(ids, ",") != "retry_raster,force_fallback,open_url" {
		t.Errorf("actions: got %v", ids)
	}
	wantError(t, s, "viewer_frame", "", codeToolFailed)

	for _, tool := range []string{"viewer_retry", "viewer_fallback"} {
		mustCall(t, s, tool, "", nil)
		if st := waitState(t, s); st.Status.Phase != "fallback-failed" {
			t.Errorf("%s: got phase %q", tool, st.Status.Phase)
		}
	}

	// No opener is configured.
	wantError(t, s, "viewer_open_url", "", codeToolFailed)

	var counters map[string]float64
	mustCall(t, s, "viewer_metrics", "", &counters)
	if counters[`test_renders_total{outcome="ok",path="raster"}`] != 1 {
		t.Errorf("raster ok renders: got %v", counters)
	}
	if counters[`test_renders_total{outcome="failed",path="overlay"}`] != 3 {
		t.Errorf("overlay failures: got %v", counters[`test_renders_total{outcome="failed",path="overlay"}`])
	}
	if m.CyclesStarted.Load() < 3 {
		t.Errorf("cycles: got %d", m.CyclesStarted.Load())
	}
}
