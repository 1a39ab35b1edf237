// Package view holds the pure geometry of the viewer: the zoom/pan/fullscreen
// session and the transforms between image space and the viewport.
//
// Layout happens in two stages. BaseSize fits the image's natural size into
// the container (or keeps it as-is in fullscreen); the session's zoom then
// scales that base size into the surface that gets rendered, and pan
// translates the surface inside the viewport. A point q in image space is
// therefore shown at
//
//	pan + zoom * (base.W / natural.W) * q
//
// No function in this package has side effects.
package view
