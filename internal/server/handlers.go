package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	dimaging "github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detection-viewer/internal/detection"
	"github.com/ironsheep/detection-viewer/internal/imaging"
	"github.com/ironsheep/detection-viewer/internal/view"
	"github.com/ironsheep/detection-viewer/internal/viewer"
)

var (
	errNoCatalog   = errors.New("no dataset loaded; call catalog_load first")
	errUnknownTool = errors.New("unknown tool")
)

// defaultWait bounds viewer_wait when the caller gives no timeout.
const defaultWait = 30 * time.Second

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "viewer_open", "viewer_frame").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = jsoniter.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if errors.Is(err, errUnknownTool) {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Catalog
	case "catalog_load":
		return s.handleCatalogLoad(args)
	case "catalog_search":
		return s.handleCatalogSearch(args)
	case "catalog_page":
		return s.handleCatalogPage(args)

	// Record and threshold
	case "viewer_open":
		return s.handleViewerOpen(args)
	case "viewer_threshold":
		return s.handleViewerThreshold(args)
	case "viewer_preset":
		return s.handleViewerPreset(args)

	// Interaction and state
	case "viewer_event":
		return s.handleViewerEvent(args)
	case "viewer_state":
		return s.viewer.Snapshot()
	case "viewer_wait":
		return s.handleViewerWait(ctx, args)

	// Output
	case "viewer_frame":
		return s.handleViewerFrame(args)
	case "viewer_overlay":
		return s.handleViewerOverlay()
	case "viewer_sample":
		return s.handleViewerSample(args)

	// Recovery
	case "viewer_retry":
		return s.afterAction(s.viewer.RetryRaster())
	case "viewer_fallback":
		return s.afterAction(s.viewer.ForceFallback())
	case "viewer_open_url":
		return s.handleViewerOpenURL()

	case "viewer_metrics":
		return s.metrics.Snapshot()

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Catalog Handlers ===

type catalogLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleCatalogLoad(args jsoniter.RawMessage) (interface{}, error) {
	var a catalogLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	c, err := detection.LoadCatalogFile(a.Path)
	if err != nil {
		return nil, err
	}
	s.setCatalog(c)
	s.log.WithFields(logrus.Fields{"path": a.Path, "entries": c.Len()}).Info("dataset loaded")

	return map[string]interface{}{
		"path":    a.Path,
		"entries": c.Len(),
		"pages":   (c.Len() + detection.ItemsPerPage - 1) / detection.ItemsPerPage,
	}, nil
}

// CatalogItem is one listed entry with its threshold-dependent fields.
type CatalogItem struct {
	ID            int      `json:"id"`
	Filename      string   `json:"filename"`
	ImageURL      string   `json:"image_url"`
	BoxCount      int      `json:"box_count"`
	FilteredCount int      `json:"filtered_count"`
	UniqueLabels  []string `json:"unique_labels"`
	VisibleLabels []string `json:"visible_labels"`
}

// CatalogPage is the result of catalog_search and catalog_page.
type CatalogPage struct {
	Term         string        `json:"term,omitempty"`
	Matches      int           `json:"matches"`
	Page         int           `json:"page"`
	HasMore      bool          `json:"has_more"`
	Threshold    string        `json:"threshold"`
	TotalVisible int           `json:"total_visible"`
	Items        []CatalogItem `json:"items"`
}

type catalogPageArgs struct {
	Term string `json:"term"`
	Page int    `json:"page"`
}

func (s *Server) handleCatalogSearch(args jsoniter.RawMessage) (interface{}, error) {
	var a catalogPageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.catalogPage(a.Term, 0)
}

func (s *Server) handleCatalogPage(args jsoniter.RawMessage) (interface{}, error) {
	var a catalogPageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Page < 0 {
		return nil, fmt.Errorf("page must be >= 0, got %d", a.Page)
	}
	return s.catalogPage(a.Term, a.Page)
}

func (s *Server) catalogPage(term string, page int) (*CatalogPage, error) {
	c, err := s.currentCatalog()
	if err != nil {
		return nil, err
	}
	threshold, err := s.viewer.Threshold()
	if err != nil {
		return nil, err
	}

	matches := c.Search(term)
	shown, more := detection.Displayed(matches, page)

	out := &CatalogPage{
		Term:         term,
		Matches:      len(matches),
		Page:         page,
		HasMore:      more,
		Threshold:    detection.FormatThreshold(threshold),
		TotalVisible: detection.TotalVisible(matches, threshold),
		Items:        make([]CatalogItem, 0, len(shown)),
	}
	for _, e := range shown {
		out.Items = append(out.Items, CatalogItem{
			ID:            e.ID,
			Filename:      e.Filename,
			ImageURL:      e.ImageURL,
			BoxCount:      e.BoxCount,
			FilteredCount: e.FilteredCount(threshold),
			UniqueLabels:  e.UniqueLabels,
			VisibleLabels: e.VisibleLabels(threshold),
		})
	}
	return out, nil
}

// === Record and Threshold Handlers ===

type viewerOpenArgs struct {
	ID       *int            `json:"id"`
	ImageURL string          `json:"image_url"`
	Filename string          `json:"filename"`
	Boxes    []detection.Box `json:"boxes"`
}

func (s *Server) handleViewerOpen(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerOpenArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var rec detection.Record
	switch {
	case a.ID != nil:
		c, err := s.currentCatalog()
		if err != nil {
			return nil, err
		}
		e, ok := c.Get(*a.ID)
		if !ok {
			return nil, fmt.Errorf("no dataset entry with id %d", *a.ID)
		}
		rec = e.Record()
	case a.ImageURL != "":
		rec = detection.Record{ImageURL: a.ImageURL, Filename: a.Filename, Boxes: a.Boxes}
	default:
		return nil, errors.New("either id or image_url is required")
	}

	if err := s.viewer.Open(rec); err != nil {
		return nil, err
	}
	return s.viewer.Snapshot()
}

// ThresholdResult describes the threshold after a change.
type ThresholdResult struct {
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Band      string  `json:"band"`
	BandColor string  `json:"band_color"`
}

func thresholdResult(v float64) ThresholdResult {
	band := detection.BandFor(v)
	return ThresholdResult{
		Value:     v,
		Formatted: detection.FormatThreshold(v),
		Band:      band.String(),
		BandColor: band.Color(),
	}
}

type viewerThresholdArgs struct {
	Value *float64 `json:"value"`
}

func (s *Server) handleViewerThreshold(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerThresholdArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Value == nil {
		return nil, errors.New("value is required")
	}

	v := detection.ClampThreshold(*a.Value)
	if err := s.viewer.SetThreshold(v); err != nil {
		return nil, err
	}
	return thresholdResult(v), nil
}

type viewerPresetArgs struct {
	Name string `json:"name"`
}

func (s *Server) handleViewerPreset(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerPresetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p, err := detection.PresetByName(a.Name)
	if err != nil {
		return nil, err
	}
	if err := s.viewer.SetThreshold(p.Value); err != nil {
		return nil, err
	}
	return thresholdResult(p.Value), nil
}

// === Interaction Handlers ===

type pointArg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type viewerEventArgs struct {
	// Type is wheel, button, pointer, touch, key, resize or container.
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// DeltaY is the wheel delta; positive zooms out.
	DeltaY float64 `json:"delta_y"`
	// Control names a toolbar button.
	Control string `json:"control"`
	// Action is down/move/up/leave for pointer events, start/move/end for touch.
	Action  string     `json:"action"`
	Button  int        `json:"button"`
	Touches []pointArg `json:"touches"`
	Key     string     `json:"key"`
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
}

var pointerActions = map[string]viewer.PointerAction{
	"down":  viewer.PointerDown,
	"move":  viewer.PointerMove,
	"up":    viewer.PointerUp,
	"leave": viewer.PointerLeave,
}

var touchActions = map[string]viewer.TouchAction{
	"start": viewer.TouchStart,
	"move":  viewer.TouchMove,
	"end":   viewer.TouchEnd,
}

func buildEvent(a viewerEventArgs) (viewer.Event, error) {
	pos := view.Point{X: a.X, Y: a.Y}
	size := view.Size{W: a.Width, H: a.Height}

	switch a.Type {
	case "wheel":
		return viewer.WheelEvent{Pos: pos, DeltaY: a.DeltaY}, nil
	case "button":
		b, ok := viewer.ParseButton(a.Control)
		if !ok {
			return nil, fmt.Errorf("unknown control: %q", a.Control)
		}
		return viewer.ButtonEvent{Button: b}, nil
	case "pointer":
		act, ok := pointerActions[a.Action]
		if !ok {
			return nil, fmt.Errorf("unknown pointer action: %q", a.Action)
		}
		return viewer.PointerEvent{Action: act, Pos: pos, Button: a.Button}, nil
	case "touch":
		act, ok := touchActions[a.Action]
		if !ok {
			return nil, fmt.Errorf("unknown touch action: %q", a.Action)
		}
		touches := make([]view.Point, len(a.Touches))
		for i, p := range a.Touches {
			touches[i] = view.Point{X: p.X, Y: p.Y}
		}
		return viewer.TouchEvent{Action: act, Touches: touches}, nil
	case "key":
		return viewer.KeyEvent{Key: a.Key}, nil
	case "resize":
		if size.Empty() {
			return nil, errors.New("resize needs a positive width and height")
		}
		return viewer.ResizeEvent{Window: size}, nil
	case "container":
		if size.Empty() {
			return nil, errors.New("container needs a positive width and height")
		}
		return viewer.ContainerEvent{Container: size}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", a.Type)
	}
}

func (s *Server) handleViewerEvent(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerEventArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ev, err := buildEvent(a)
	if err != nil {
		return nil, err
	}

	eff, err := s.viewer.Dispatch(ev)
	if err != nil {
		return nil, err
	}
	snap, err := s.viewer.Snapshot()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"effect": eff.String(),
		"state":  snap,
	}, nil
}

type viewerWaitArgs struct {
	TimeoutMs int `json:"timeout_ms"`
}

func (s *Server) handleViewerWait(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a viewerWaitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	timeout := defaultWait
	if a.TimeoutMs > 0 {
		timeout = time.Duration(a.TimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.viewer.Settled(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for render: %w", err)
	}
	return s.viewer.Snapshot()
}

// === Output Handlers ===

// FrameResult describes a composed frame.
type FrameResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Path        string `json:"path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type regionArg struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type viewerFrameArgs struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Path saves the frame to disk; .jpg/.jpeg writes JPEG, anything else PNG.
	Path    string `json:"path"`
	Quality int    `json:"quality"`
	// Grid draws a coordinate grid every Grid pixels before cropping.
	Grid       int  `json:"grid"`
	GridLabels bool `json:"grid_labels"`
	// Region or Quadrant cuts part of the frame out; Scale resizes the cut.
	Region   *regionArg `json:"region"`
	Quadrant string     `json:"quadrant"`
	Scale    float64    `json:"scale"`
}

// inspect applies the grid and crop options to a composed frame.
func (a viewerFrameArgs) inspect(frame image.Image) (image.Image, error) {
	if a.Grid > 0 {
		g, err := imaging.DrawGrid(frame, imaging.GridOptions{Spacing: a.Grid, Labels: a.GridLabels})
		if err != nil {
			return nil, err
		}
		frame = g
	}

	var region image.Rectangle
	switch {
	case a.Region != nil && a.Quadrant != "":
		return nil, errors.New("region and quadrant are mutually exclusive")
	case a.Region != nil:
		region = image.Rect(a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2)
		if a.Region.X1 >= a.Region.X2 || a.Region.Y1 >= a.Region.Y2 {
			return nil, errors.New("invalid region: x1 must be < x2, y1 must be < y2")
		}
	case a.Quadrant != "":
		r, err := imaging.NamedRegion(frame.Bounds(), a.Quadrant)
		if err != nil {
			return nil, err
		}
		region = r.Sub(frame.Bounds().Min)
	default:
		if a.Scale != 0 {
			return nil, errors.New("scale needs a region or quadrant")
		}
		return frame, nil
	}
	return imaging.Crop(frame, region, a.Scale, dimaging.Lanczos)
}

func (s *Server) handleViewerFrame(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerFrameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width < 0 || a.Height < 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", a.Width, a.Height)
	}

	composed, err := s.viewer.Frame(view.Size{W: float64(a.Width), H: float64(a.Height)})
	if err != nil {
		return nil, err
	}
	frame, err := a.inspect(composed)
	if err != nil {
		return nil, err
	}
	b := frame.Bounds()
	res := &FrameResult{Width: b.Dx(), Height: b.Dy()}

	if a.Path != "" {
		if err := imgio.Save(a.Path, frame, encoderFor(a.Path, a.Quality)); err != nil {
			return nil, fmt.Errorf("failed to save frame: %w", err)
		}
		res.Path = a.Path
		return res, nil
	}

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, frame); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	res.ImageBase64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return res, nil
}

func encoderFor(path string, quality int) imgio.Encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		return imgio.JPEGEncoder(quality)
	default:
		return imgio.PNGEncoder()
	}
}

func (s *Server) handleViewerOverlay() (interface{}, error) {
	doc, err := s.viewer.OverlaySVG()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"svg": string(doc)}, nil
}

type viewerSampleArgs struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// handleViewerSample reads a pixel of the composed frame, e.g. to check the
// color a label was drawn in.
func (s *Server) handleViewerSample(args jsoniter.RawMessage) (interface{}, error) {
	var a viewerSampleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	frame, err := s.viewer.Frame(view.Size{W: float64(a.Width), H: float64(a.Height)})
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(frame, a.X, a.Y)
}

// === Recovery Handlers ===

func (s *Server) afterAction(err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return s.viewer.Snapshot()
}

func (s *Server) handleViewerOpenURL() (interface{}, error) {
	url, err := s.viewer.OpenURL()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"opened": url}, nil
}
