//go:build !windows

package overlay

import (
	"context"
)

// stubSelector covers platforms without a native overlay. Area capture
// surfaces ErrUnsupported; full-display capture does not go through the
// overlay and keeps working.
type stubSelector struct{}

func newPlatformSelector() Selector { return stubSelector{} }

func (stubSelector) Select(ctx context.Context) (Selection, bool, error) {
	return Selection{}, false, ErrUnsupported
}

func (stubSelector) Dismiss() {}
