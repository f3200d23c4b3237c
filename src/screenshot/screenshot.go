// Package screenshot wraps the platform capture primitive and display
// enumeration behind a small backend interface.
package screenshot

import (
	"fmt"
	"image"
	"image/draw"
	"log"

	kbinani "github.com/kbinani/screenshot"

	"snapmark/src/geometry"
)

// Display describes one attached display. Bounds are in virtual-screen
// pixel coordinates as reported by the capture backend.
type Display struct {
	Index  int
	Bounds image.Rectangle
	Scale  float64
}

// Geometry returns the display's extent in the mapper's terms.
func (d Display) Geometry() geometry.DisplayGeometry {
	return geometry.DisplayGeometry{
		WidthPx:  d.Bounds.Dx(),
		HeightPx: d.Bounds.Dy(),
		Scale:    d.Scale,
	}
}

// Backend is the platform capture primitive. Rect is in virtual-screen
// pixel coordinates.
type Backend interface {
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

// KbinaniBackend captures through github.com/kbinani/screenshot.
type KbinaniBackend struct{}

func (KbinaniBackend) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return kbinani.CaptureRect(rect)
}

// Displays enumerates active displays. The backend reports pixel bounds
// only, so the scale factor is taken from the caller's settings layer and
// applied uniformly; 0 or negative means 1.
func Displays(scale float64) ([]Display, error) {
	if scale <= 0 {
		scale = 1
	}
	n := kbinani.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	out := make([]Display, n)
	for i := 0; i < n; i++ {
		out[i] = Display{Index: i, Bounds: kbinani.GetDisplayBounds(i), Scale: scale}
	}
	return out, nil
}

// PrimaryDisplay returns the display anchored at the virtual-screen
// origin, which is where the OS places the primary monitor.
func PrimaryDisplay(scale float64) (Display, error) {
	displays, err := Displays(scale)
	if err != nil {
		return Display{}, err
	}
	return primaryOf(displays), nil
}

func primaryOf(displays []Display) Display {
	for _, d := range displays {
		if d.Bounds.Min == (image.Point{}) {
			return d
		}
	}
	return displays[0]
}

// DisplayAt returns the display whose bounds contain the given
// virtual-screen pixel point, falling back to the primary display.
func DisplayAt(displays []Display, pt image.Point) (Display, error) {
	if len(displays) == 0 {
		return Display{}, fmt.Errorf("no displays")
	}
	for _, d := range displays {
		if pt.In(d.Bounds) {
			return d, nil
		}
	}
	return displays[0], nil
}

// CaptureRegion captures rectPx, given display-relative with a top-left
// origin, from the given display. On a backend failure it retries once by
// capturing the display's full frame and cropping, then surfaces the
// error.
func CaptureRegion(b Backend, d Display, rectPx image.Rectangle) (*image.RGBA, error) {
	if rectPx.Dx() <= 0 || rectPx.Dy() <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: %dx%d", rectPx.Dx(), rectPx.Dy())
	}

	abs := rectPx.Add(d.Bounds.Min)
	img, err := b.CaptureRect(abs)
	if err == nil {
		return img, nil
	}

	log.Printf("CaptureRegion: direct capture failed (%v), retrying via full-frame crop", err)
	full, ferr := b.CaptureRect(d.Bounds)
	if ferr != nil {
		return nil, fmt.Errorf("capture failed: %v (fallback: %v)", err, ferr)
	}
	return crop(full, abs), nil
}

// CaptureDisplay captures a display's full frame.
func CaptureDisplay(b Backend, d Display) (*image.RGBA, error) {
	img, err := b.CaptureRect(d.Bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", d.Index, err)
	}
	return img, nil
}

// crop copies the overlap of img and abs into a fresh RGBA anchored at
// the origin.
func crop(img *image.RGBA, abs image.Rectangle) *image.RGBA {
	src := img.Bounds().Intersect(abs)
	out := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(out, out.Bounds(), img, src.Min, draw.Src)
	return out
}
