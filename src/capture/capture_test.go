package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"snapmark/src/geometry"
	"snapmark/src/overlay"
	"snapmark/src/screenshot"
)

type scriptedSelector struct {
	sel       overlay.Selection
	cancelled bool
	err       error
	dismissed int
}

func (s *scriptedSelector) Select(ctx context.Context) (overlay.Selection, bool, error) {
	return s.sel, s.cancelled, s.err
}

func (s *scriptedSelector) Dismiss() { s.dismissed++ }

// blockingSelector holds the overlay open until Dismiss, the way a real
// user mid-drag does.
type blockingSelector struct {
	sel overlay.Selection

	mu        sync.Mutex
	dismissed int
	release   chan struct{}
}

func newBlockingSelector(sel overlay.Selection) *blockingSelector {
	return &blockingSelector{sel: sel, release: make(chan struct{})}
}

func (s *blockingSelector) Select(ctx context.Context) (overlay.Selection, bool, error) {
	<-s.release
	return s.sel, false, nil
}

func (s *blockingSelector) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed++
	if s.dismissed == 1 {
		close(s.release)
	}
}

func (s *blockingSelector) dismissCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed
}

type countingBackend struct {
	calls int
}

func (b *countingBackend) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	b.calls++
	return image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

func testDisplay() screenshot.Display {
	return screenshot.Display{Bounds: image.Rect(0, 0, 1920, 1080), Scale: 1}
}

func validSelection() overlay.Selection {
	return overlay.Selection{
		Rect: geometry.Selection{
			A: geometry.Point{X: 100, Y: 100},
			B: geometry.Point{X: 400, Y: 300},
		},
		Display: testDisplay(),
	}
}

func waitResult(t *testing.T, c *Coordinator) Result {
	t.Helper()
	select {
	case res := <-c.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no capture result delivered")
		return Result{}
	}
}

func waitSelection(t *testing.T, c *Coordinator) SelectionOutcome {
	t.Helper()
	select {
	case out := <-c.Selections():
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no selection outcome delivered")
		return SelectionOutcome{}
	}
}

// beginArea runs the overlay round trip the way the event loop does:
// begin, wait for the outcome, finish.
func beginArea(t *testing.T, c *Coordinator) error {
	t.Helper()
	if err := c.BeginAreaCapture(context.Background()); err != nil {
		return err
	}
	return c.FinishSelection(context.Background(), waitSelection(t, c))
}

func TestAreaCaptureDeliversResult(t *testing.T) {
	sel := &scriptedSelector{sel: validSelection()}
	b := &countingBackend{}
	c := New(sel, b)
	defer c.Close()

	if err := beginArea(t, c); err != nil {
		t.Fatalf("area capture failed: %v", err)
	}
	res := waitResult(t, c)
	if !c.Accept(res) {
		t.Fatal("fresh result reported stale")
	}
	if res.Err != nil {
		t.Fatalf("capture error: %v", res.Err)
	}
	if res.Image.Bounds().Dx() != 300 || res.Image.Bounds().Dy() != 200 {
		t.Errorf("captured %v, want 300x200", res.Image.Bounds())
	}
	if c.InProgress() {
		t.Error("in-progress flag not cleared after accept")
	}
}

func TestCancelledSelectionHasNoSideEffects(t *testing.T) {
	sel := &scriptedSelector{cancelled: true}
	b := &countingBackend{}
	c := New(sel, b)
	defer c.Close()

	err := beginArea(t, c)
	if !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("err = %v, want ErrSelectionCancelled", err)
	}
	if b.calls != 0 {
		t.Error("cancelled selection still hit the backend")
	}
	if c.InProgress() {
		t.Error("cancelled selection left the in-progress flag set")
	}
	if c.OverlayOpen() {
		t.Error("cancelled selection left the overlay flag set")
	}
}

func TestTooSmallDragCountsAsCancel(t *testing.T) {
	small := validSelection()
	small.Rect.B = geometry.Point{X: 104, Y: 104}
	sel := &scriptedSelector{sel: small}
	c := New(sel, &countingBackend{})
	defer c.Close()

	if err := beginArea(t, c); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("err = %v, want ErrSelectionCancelled", err)
	}
}

func TestSecondCaptureRejectedWhileOutstanding(t *testing.T) {
	sel := &scriptedSelector{sel: validSelection()}
	c := New(sel, &countingBackend{})
	defer c.Close()

	if err := beginArea(t, c); err != nil {
		t.Fatal(err)
	}
	// Result not yet accepted: the coordinator is still busy.
	if err := c.BeginAreaCapture(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	res := waitResult(t, c)
	if !c.Accept(res) {
		t.Fatal("result reported stale")
	}
	// Accepting frees the coordinator again.
	if err := beginArea(t, c); err != nil {
		t.Errorf("capture after accept failed: %v", err)
	}
	res = waitResult(t, c)
	c.Accept(res)
}

func TestSecondOverlayRejectedWhileDragging(t *testing.T) {
	sel := newBlockingSelector(validSelection())
	c := New(sel, &countingBackend{})
	defer c.Close()

	if err := c.BeginAreaCapture(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginAreaCapture(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second overlay: err = %v, want ErrBusy", err)
	}

	c.CancelPending()
	if err := c.FinishSelection(context.Background(), waitSelection(t, c)); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("after dismiss: err = %v, want ErrSelectionCancelled", err)
	}
}

func TestCancelPendingMakesLateResultStale(t *testing.T) {
	sel := &scriptedSelector{sel: validSelection()}
	c := New(sel, &countingBackend{})
	defer c.Close()

	if err := beginArea(t, c); err != nil {
		t.Fatal(err)
	}
	c.CancelPending()

	res := waitResult(t, c)
	if c.Accept(res) {
		t.Error("result completed after cancellation was not recognized as stale")
	}
}

func TestFullCaptureDismissesOpenOverlay(t *testing.T) {
	sel := newBlockingSelector(validSelection())
	c := New(sel, &countingBackend{})
	defer c.Close()

	// The user is mid-drag: Select is blocked on its goroutine, the
	// coordinator is free to take other calls.
	if err := c.BeginAreaCapture(context.Background()); err != nil {
		t.Fatalf("BeginAreaCapture failed: %v", err)
	}
	if err := c.CaptureFullDisplay(context.Background(), testDisplay()); err != nil {
		t.Fatalf("CaptureFullDisplay failed: %v", err)
	}
	if got := sel.dismissCount(); got != 1 {
		t.Errorf("overlay dismissed %d times, want 1", got)
	}

	res := waitResult(t, c)
	if !c.Accept(res) {
		t.Fatal("result reported stale")
	}
	if res.Image.Bounds().Dx() != 1920 || res.Image.Bounds().Dy() != 1080 {
		t.Errorf("full capture %v, want 1920x1080", res.Image.Bounds())
	}

	// The voided drag completes with a valid selection but must not
	// start a second capture.
	if err := c.FinishSelection(context.Background(), waitSelection(t, c)); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("voided drag: err = %v, want ErrSelectionCancelled", err)
	}
	if c.OverlayOpen() {
		t.Error("overlay flag still set after the outcome drained")
	}
}
