// Package capture coordinates selection overlays and display read-back,
// delivering decoded bitmaps back to the event loop.
package capture

import (
	"context"
	"errors"
	"image"
	"log"

	"snapmark/src/geometry"
	"snapmark/src/overlay"
	"snapmark/src/screenshot"
	"snapmark/src/worker"
)

var (
	// ErrBusy rejects a capture request while another is outstanding.
	ErrBusy = errors.New("capture already in progress")

	// ErrSelectionCancelled is the silent outcome of escape,
	// right-click or a too-small drag.
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// Result is one finished capture, delivered on the results channel. A
// result whose Generation does not match the coordinator's current
// generation is stale and must be discarded by the consumer.
type Result struct {
	Generation uint64
	Image      *image.RGBA
	Display    screenshot.Display
	Err        error
}

// SelectionOutcome is one finished overlay interaction. It is posted by
// the selector goroutine and must be handed back to FinishSelection on
// the event-loop goroutine.
type SelectionOutcome struct {
	Selection overlay.Selection
	Cancelled bool
	Err       error
}

// Coordinator drives area and full-display captures. All methods must be
// called from the event-loop goroutine; the overlay and the capture
// itself run on the side and post back through Selections and Results.
type Coordinator struct {
	selector overlay.Selector
	backend  screenshot.Backend
	pool     *worker.Pool
	results  chan Result

	selections chan SelectionOutcome

	inProgress bool
	generation uint64

	// overlayOpen holds from BeginAreaCapture until the outcome drains
	// through FinishSelection; overlayVoided marks that a dismiss was
	// issued meanwhile, so even a completed drag counts as cancelled.
	overlayOpen   bool
	overlayVoided bool
}

// New creates a coordinator. A nil backend uses the platform default.
func New(selector overlay.Selector, backend screenshot.Backend) *Coordinator {
	if backend == nil {
		backend = screenshot.KbinaniBackend{}
	}
	return &Coordinator{
		selector:   selector,
		backend:    backend,
		pool:       worker.New(1),
		results:    make(chan Result, 1),
		selections: make(chan SelectionOutcome, 1),
	}
}

// Results delivers finished captures. Consumed by the event loop only.
func (c *Coordinator) Results() <-chan Result { return c.results }

// Selections delivers finished overlay interactions. Consumed by the
// event loop only.
func (c *Coordinator) Selections() <-chan SelectionOutcome { return c.selections }

// InProgress reports whether a capture is outstanding.
func (c *Coordinator) InProgress() bool { return c.inProgress }

// OverlayOpen reports whether a selection overlay is up.
func (c *Coordinator) OverlayOpen() bool { return c.overlayOpen }

// BeginAreaCapture opens the selection overlay on its own goroutine and
// returns immediately; the outcome arrives on Selections. The event
// loop stays free while the user drags, so full-capture triggers and
// control commands can dismiss the overlay instead of queuing behind
// it.
func (c *Coordinator) BeginAreaCapture(ctx context.Context) error {
	if c.inProgress || c.overlayOpen {
		return ErrBusy
	}
	c.overlayOpen = true
	c.overlayVoided = false
	go func() {
		sel, cancelled, err := c.selector.Select(ctx)
		c.selections <- SelectionOutcome{Selection: sel, Cancelled: cancelled, Err: err}
	}()
	return nil
}

// FinishSelection consumes a delivered outcome and, on a completed
// drag, submits the capture. Cancellation (escape, right-click,
// too-small drag, or a dismiss issued while the drag was up) returns
// ErrSelectionCancelled with no side effects.
func (c *Coordinator) FinishSelection(ctx context.Context, out SelectionOutcome) error {
	voided := c.overlayVoided
	c.overlayOpen = false
	c.overlayVoided = false

	if out.Err != nil {
		return out.Err
	}
	if out.Cancelled || voided {
		return ErrSelectionCancelled
	}
	if c.inProgress {
		// A full capture claimed the slot while the drag finished.
		return ErrBusy
	}

	px, ok := geometry.MapToPixels(out.Selection.Rect, out.Selection.Display.Geometry())
	if !ok || !geometry.MeetsInteractiveMinimum(px) {
		// A drag below the usability floor counts as a cancel.
		return ErrSelectionCancelled
	}

	d := out.Selection.Display
	return c.submit(ctx, d, func() (*image.RGBA, error) {
		return screenshot.CaptureRegion(c.backend, d, px)
	})
}

// CaptureFullDisplay captures a display's full frame, bypassing the
// overlay. An open area-selection overlay is dismissed first rather than
// queued behind.
func (c *Coordinator) CaptureFullDisplay(ctx context.Context, d screenshot.Display) error {
	if c.overlayOpen {
		log.Printf("CaptureFullDisplay: dismissing open selection overlay")
		c.dismissOverlay()
	}
	if c.inProgress {
		return ErrBusy
	}
	return c.submit(ctx, d, func() (*image.RGBA, error) {
		return screenshot.CaptureDisplay(c.backend, d)
	})
}

// dismissOverlay voids the outcome still in flight; overlayOpen stays
// set until FinishSelection drains it, keeping a second overlay from
// opening underneath.
func (c *Coordinator) dismissOverlay() {
	c.overlayVoided = true
	c.selector.Dismiss()
}

func (c *Coordinator) submit(ctx context.Context, d screenshot.Display, fn worker.CaptureFunc) error {
	c.generation++
	gen := c.generation
	c.inProgress = true

	submitted := c.pool.Submit(ctx, fn, func(img *image.RGBA, err error) {
		c.results <- Result{Generation: gen, Image: img, Display: d, Err: err}
	})
	if !submitted {
		c.inProgress = false
		return ErrBusy
	}
	return nil
}

// Accept validates a delivered result against the current generation and
// clears the in-progress flag. Stale results (superseded by
// CancelPending) report false and must be dropped.
func (c *Coordinator) Accept(res Result) bool {
	if res.Generation != c.generation {
		log.Printf("capture: discarding stale result (generation %d, current %d)", res.Generation, c.generation)
		return false
	}
	c.inProgress = false
	return true
}

// CancelPending invalidates any outstanding capture so its late
// completion is recognized as stale, and dismisses an open overlay.
func (c *Coordinator) CancelPending() {
	c.generation++
	c.inProgress = false
	if c.overlayOpen {
		c.dismissOverlay()
	}
}

// Close drains the worker pool.
func (c *Coordinator) Close() { c.pool.Close() }
