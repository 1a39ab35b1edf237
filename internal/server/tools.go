package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var quadrantNames = []string{
	"top-left", "top-right", "bottom-left", "bottom-right",
	"top-half", "bottom-half", "left-half", "right-half",
	"center",
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Catalog
		{
			Name:        "catalog_load",
			Description: "Load a detection dataset: a JSON array of {\"image\": url, \"bboxes\": [{\"box\": {x1,y1,x2,y2}, \"label\", \"confidence\"}]}.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the dataset JSON file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "catalog_search",
			Description: "Search the dataset by filename or label (case-insensitive) and return the first page of matches with per-image detection counts at the current threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"term": map[string]interface{}{
						"type":        "string",
						"description": "Search term; empty lists everything",
					},
				},
			},
		},
		{
			Name:        "catalog_page",
			Description: "Reveal more search results. Page N returns the first (N+1)*6 matches, like scrolling an infinite list.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"term": map[string]interface{}{
						"type":        "string",
						"description": "Search term; empty lists everything",
					},
					"page": map[string]interface{}{
						"type":        "integer",
						"description": "0-based page. Default 0",
						"default":     0,
					},
				},
			},
		},

		// Record and threshold
		{
			Name:        "viewer_open",
			Description: "Display an image with its detection boxes, either a dataset entry by id or an explicit image URL with boxes. Starts loading; use viewer_wait to block until it is drawn.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "Dataset entry id from catalog_search",
					},
					"image_url": map[string]interface{}{
						"type":        "string",
						"description": "http(s) URL, file:// URL or local path of the image",
					},
					"filename": map[string]interface{}{
						"type":        "string",
						"description": "Display name. Defaults to the last URL path segment",
					},
					"boxes": map[string]interface{}{
						"type":        "array",
						"description": "Detections in natural image pixels",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"box": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"x1": map[string]interface{}{"type": "number"},
										"y1": map[string]interface{}{"type": "number"},
										"x2": map[string]interface{}{"type": "number"},
										"y2": map[string]interface{}{"type": "number"},
									},
									"required": []string{"x1", "y1", "x2", "y2"},
								},
								"label":      map[string]interface{}{"type": "string"},
								"confidence": map[string]interface{}{"type": "number"},
							},
							"required": []string{"box", "label", "confidence"},
						},
					},
				},
			},
		},
		{
			Name:        "viewer_threshold",
			Description: "Set the confidence threshold. Only boxes with confidence >= threshold are drawn. The value is clamped to [0, 1] in 0.01 steps.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"value": map[string]interface{}{
						"type":        "number",
						"description": "Threshold between 0 and 1",
					},
				},
				"required": []string{"value"},
			},
		},
		{
			Name:        "viewer_preset",
			Description: "Apply a threshold preset: \"Show All\" (0), \"Medium+ (50%)\" (0.5), \"High (80%)\" (0.8) or \"Very High (95%)\" (0.95). The numeric value is also accepted.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Preset name or value",
					},
				},
				"required": []string{"name"},
			},
		},

		// Interaction and state
		{
			Name:        "viewer_event",
			Description: "Send user input: wheel zoom, toolbar button, mouse drag, touch drag, key press, window resize or container resize. Returns whether the view re-rendered or only moved.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type": map[string]interface{}{
						"type": "string",
						"enum": []string{"wheel", "button", "pointer", "touch", "key", "resize", "container"},
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Pointer X in viewport pixels (wheel, pointer)",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Pointer Y in viewport pixels (wheel, pointer)",
					},
					"delta_y": map[string]interface{}{
						"type":        "number",
						"description": "Wheel delta; positive zooms out",
					},
					"control": map[string]interface{}{
						"type":        "string",
						"description": "Toolbar button",
						"enum":        []string{"zoom_in", "zoom_out", "fit", "zoom_100", "reset", "fullscreen"},
					},
					"action": map[string]interface{}{
						"type":        "string",
						"description": "down, move, up or leave for pointer; start, move or end for touch",
					},
					"button": map[string]interface{}{
						"type":        "integer",
						"description": "Mouse button for pointer down; 0 is primary",
					},
					"touches": map[string]interface{}{
						"type":        "array",
						"description": "Active touch points",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x": map[string]interface{}{"type": "number"},
								"y": map[string]interface{}{"type": "number"},
							},
						},
					},
					"key": map[string]interface{}{
						"type":        "string",
						"description": "Key name, e.g. Escape",
					},
					"width": map[string]interface{}{
						"type":        "number",
						"description": "New width (resize, container)",
					},
					"height": map[string]interface{}{
						"type":        "number",
						"description": "New height (resize, container)",
					},
				},
				"required": []string{"type"},
			},
		},
		{
			Name:        "viewer_state",
			Description: "Return the viewer state: load phase, zoom, pan, fullscreen, drawn boxes, info line and the failure panel when loading failed.",
			InputSchema: noArgs(),
		},
		{
			Name:        "viewer_wait",
			Description: "Block until the current image has finished loading (or failed), then return the viewer state.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"timeout_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum wait in milliseconds. Default 30000",
						"default":     30000,
					},
				},
			},
		},

		// Output
		{
			Name:        "viewer_frame",
			Description: "Render what the viewer shows into a viewport-sized image, as base64-encoded PNG or saved to a file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Viewport width. Defaults to the container (or window in fullscreen)",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Viewport height. Defaults to the container (or window in fullscreen)",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Optional output file; .jpg/.jpeg writes JPEG, otherwise PNG",
					},
					"quality": map[string]interface{}{
						"type":        "integer",
						"description": "JPEG quality 1-100. Default 90",
						"default":     90,
					},
					"grid": map[string]interface{}{
						"type":        "integer",
						"description": "Overlay a coordinate grid with this spacing in pixels (min 4), e.g. to pick pointer positions",
					},
					"grid_labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid intersections with their x,y coordinates",
						"default":     false,
					},
					"region": map[string]interface{}{
						"type":        "object",
						"description": "Return only this part of the frame",
						"properties": map[string]interface{}{
							"x1": map[string]interface{}{"type": "integer"},
							"y1": map[string]interface{}{"type": "integer"},
							"x2": map[string]interface{}{"type": "integer"},
							"y2": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"x1", "y1", "x2", "y2"},
					},
					"quadrant": map[string]interface{}{
						"type":        "string",
						"description": "Return only a named part of the frame",
						"enum":        quadrantNames,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Resize the region or quadrant by this factor (max 8). Default 1",
					},
				},
			},
		},
		{
			Name:        "viewer_overlay",
			Description: "Return the SVG overlay document while the image fallback is displayed.",
			InputSchema: noArgs(),
		},
		{
			Name:        "viewer_sample",
			Description: "Get the color of one pixel of the displayed frame in hex, RGB and HSL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate in the frame",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate in the frame",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Frame width. Defaults to the display area",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Frame height. Defaults to the display area",
					},
				},
				"required": []string{"x", "y"},
			},
		},

		// Recovery
		{
			Name:        "viewer_retry",
			Description: "After both loading methods failed, retry the canvas path from the start.",
			InputSchema: noArgs(),
		},
		{
			Name:        "viewer_fallback",
			Description: "After both loading methods failed, retry only the image fallback.",
			InputSchema: noArgs(),
		},
		{
			Name:        "viewer_open_url",
			Description: "Open the current image URL outside the viewer.",
			InputSchema: noArgs(),
		},

		{
			Name:        "viewer_metrics",
			Description: "Return render and load counters: outcomes per path, phase transitions, discarded stale loads and load durations.",
			InputSchema: noArgs(),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
