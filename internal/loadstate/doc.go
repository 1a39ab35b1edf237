// Package loadstate tracks the load lifecycle of the image on screen.
//
// Every render cycle starts in Loading and ends in exactly one of three
// phases:
//
//	Loading ──raster ok──────────────────────────────▶ Loaded
//	Loading ──raster fails──▶ RasterFailed ──▶ FallbackLoading ──ok──▶ FallbackLoaded
//	                                           FallbackLoading ──fails──▶ FallbackFailed
//
// RasterFailed is transient: the machine passes through it and lands in
// FallbackLoading within the same call. From FallbackFailed the user can
// retry the raster path (back to Loading) or force the fallback path (back
// to FallbackLoading).
//
// Each cycle is identified by a Token. Completions carry the token of the
// cycle they belong to; once a newer cycle has begun, older tokens are
// rejected with ErrStaleToken so late results can never overwrite a newer
// frame.
package loadstate
