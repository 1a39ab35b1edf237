// Package detection holds the detection data model consumed by the viewer.
//
// A Record pairs an image URL with the boxes an object detector produced for
// it. The viewer never mutates a Record; it reads the boxes on every draw and
// keeps only those whose confidence reaches the current threshold.
//
// # Coordinate System
//
// Box coordinates are image-space pixels of the original, undecoded image:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right, X1 < X2, Y1 < Y2
//
// # Thresholds
//
// Confidence thresholds are in [0, 1]. Filter keeps boxes with
// Confidence >= threshold, in their original order, so later boxes paint over
// earlier ones. Threshold helpers mirror the slider the viewer is driven by:
// 0.01 steps, four presets and three confidence bands.
//
// # Catalog
//
// Catalog loads a detection dataset (a JSON array of {image, bboxes} objects),
// derives filenames and label sets, and supports search and paging.
package detection
