// Package render turns a decoded image, its detections and a view session
// into pixels.
//
// Two Renderer implementations share one contract. Raster draws the image
// and its boxes into a single bitmap sized to the zoomed surface; it is the
// primary path. Overlay is the fallback: it shows the image at its plain
// display size and describes the boxes as an SVG overlay in natural image
// coordinates, leaving zoom and pan to a single display transform. Both
// paths draw exactly the boxes that pass the confidence threshold, in input
// order, colored by label.
//
// Compose places a rendered Surface into a viewport, applying pan (and, for
// overlay surfaces, zoom) without re-rendering.
package render
