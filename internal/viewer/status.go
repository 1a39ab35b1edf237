package viewer

import (
	"fmt"

	"github.com/ironsheep/detection-viewer/internal/loadstate"
)

// Action IDs offered by the failure panel.
const (
	ActionRetryRaster   = "retry_raster"
	ActionForceFallback = "force_fallback"
	ActionOpenURL       = "open_url"
)

// Action is a recovery control on the failure panel.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RecoveryActions lists the controls offered after both paths failed.
var RecoveryActions = []Action{
	{ID: ActionRetryRaster, Label: "Retry Canvas"},
	{ID: ActionForceFallback, Label: "Try Image Fallback"},
	{ID: ActionOpenURL, Label: "Open in New Tab"},
}

// LikelyCauses lists the usual reasons both load paths fail.
var LikelyCauses = []string{
	"Network connectivity issues",
	"CORS restrictions from the image server",
	"The image URL being temporarily unavailable",
	"Browser security restrictions",
}

// FullscreenHint is shown while fullscreen.
const FullscreenHint = "Mouse wheel or +/− to zoom • Click and drag to pan • ESC to exit fullscreen"

// Status describes what the viewer is showing.
type Status struct {
	Phase    loadstate.Phase `json:"phase"`
	Title    string          `json:"title,omitempty"`
	Message  string          `json:"message"`
	Filename string          `json:"filename,omitempty"`
	URL      string          `json:"url,omitempty"`
	Causes   []string        `json:"causes,omitempty"`
	Actions  []Action        `json:"actions,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func statusFor(phase loadstate.Phase, filename, url string, lastErr error) Status {
	st := Status{Phase: phase, Filename: filename, URL: url}
	switch phase {
	case loadstate.Idle:
		st.Message = "No image selected"
	case loadstate.Loading:
		st.Message = "Loading image..."
	case loadstate.Loaded:
		st.Message = fmt.Sprintf("Showing %s", filename)
	case loadstate.RasterFailed, loadstate.FallbackLoading:
		st.Message = "Canvas loading failed. Trying image fallback..."
	case loadstate.FallbackLoaded:
		st.Message = fmt.Sprintf("Showing %s (image fallback)", filename)
	case loadstate.FallbackFailed:
		st.Title = "Image Loading Failed"
		st.Message = "Both canvas and image loading methods failed."
		st.Causes = LikelyCauses
		st.Actions = RecoveryActions
	}
	if lastErr != nil {
		st.Error = lastErr.Error()
	}
	return st
}
