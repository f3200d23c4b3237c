// Package overlay defines the selection-overlay collaborator: a UI
// surface that lets the user drag a rectangle on one display.
package overlay

import (
	"context"
	"errors"

	"snapmark/src/geometry"
	"snapmark/src/screenshot"
)

// Selection is a completed drag on a specific display.
type Selection struct {
	Rect    geometry.Selection
	Display screenshot.Display
}

// Selector presents the overlay on the display containing the pointer
// and blocks until the user completes or cancels the drag. The capture
// coordinator serializes invocations, so at most one Select is live at
// a time; Dismiss may be called from any goroutine. cancelled is true
// for escape, right-click or a too-small drag; sel is then undefined
// and err is nil.
type Selector interface {
	Select(ctx context.Context) (sel Selection, cancelled bool, err error)
	// Dismiss closes an open overlay, if any. Safe to call when no
	// selection is in progress.
	Dismiss()
}

// ErrUnsupported is returned by the stub selector on platforms without
// an overlay implementation.
var ErrUnsupported = errors.New("interactive region selection not implemented for this platform")

// NewSelector returns the platform implementation.
func NewSelector() Selector {
	return newPlatformSelector()
}
