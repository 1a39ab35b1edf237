// Package viewer drives the interactive display of one detection record.
//
// A Viewer owns the view session, the load state machine and the rendered
// surface on a single goroutine. Every change of record, zoom, display mode
// or threshold starts a render cycle: the image is drawn on the raster path
// first and, if that fails, through the vector overlay fallback. Loads run
// off the loop and report back tagged with their cycle token; a completion
// for a superseded cycle is dropped, so a late result can never replace a
// newer frame.
//
// Pan changes never re-render. Frame composes the existing surface into a
// viewport at the current pan.
//
// Controller maps wheel, button, pointer, touch, key and resize input to
// session changes and reports whether the surface must be redrawn.
package viewer
