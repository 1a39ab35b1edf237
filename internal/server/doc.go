// Package server implements the MCP (Model Context Protocol) server that
// drives a detection viewer.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Catalog:
//   - catalog_load: Load a detection dataset file
//   - catalog_search: Search by filename or label
//   - catalog_page: Reveal further pages of results
//
// Record and threshold:
//   - viewer_open: Display a dataset entry or an explicit image with boxes
//   - viewer_threshold: Set the confidence threshold
//   - viewer_preset: Apply a named threshold preset
//
// Interaction and state:
//   - viewer_event: Wheel, toolbar, pointer, touch, key and resize input
//   - viewer_state: Current load phase, view and failure panel
//   - viewer_wait: Block until the current load settles
//
// Output:
//   - viewer_frame: Compose the visible frame as PNG/JPEG
//   - viewer_overlay: SVG overlay of the image fallback
//   - viewer_sample: Color of one frame pixel
//
// Recovery:
//   - viewer_retry, viewer_fallback: Recovery actions after both loads failed
//   - viewer_open_url: Open the image URL externally
//
// viewer_metrics returns the render and load counters.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(server.Options{Viewer: v, Metrics: m, Logger: log})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
