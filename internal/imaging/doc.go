// Package imaging provides the image-level building blocks of the viewer:
// label colors, pixel sampling, image loading and frame inspection.
//
// # Label Colors
//
// ColorFor maps a detection label to a stable HSL color. The mapping is a
// pure function of the label text, so the same label is drawn in the same
// color on every image, in both render paths, and across runs.
//
// # Loading
//
// Fetcher resolves an image source to a decoded image.Image. Sources are
// http(s) URLs, file:// URLs or plain filesystem paths. Decoding is left to
// the image format registry; this package never parses image bytes itself.
//
// # Frame Inspection
//
// DrawGrid, Crop and NamedRegion work on composed frames: a labelled grid
// shows which viewport coordinates to send as pointer events, and a crop
// enlarges a detail such as a label chip.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// # Thread Safety
//
// Fetcher is safe for concurrent use. All other functions are stateless.
package imaging
