// Package geometry converts user-drawn selection rectangles from logical
// screen points into clamped, scale-corrected pixel rectangles.
package geometry

import (
	"image"
	"math"
)

// MinInteractivePx is the usability floor for interactive selections.
// Drags that map to anything smaller are treated as accidental.
const MinInteractivePx = 10

// Origin identifies the y-axis convention of a coordinate space.
type Origin int

const (
	OriginTopLeft Origin = iota
	OriginBottomLeft
)

// Point is a position in logical display points.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in logical display points,
// expressed as a min corner plus positive size.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersect returns the overlap of two rects. A non-positive width or
// height in the result means the rects do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	x0 := math.Max(r.X, other.X)
	y0 := math.Max(r.Y, other.Y)
	x1 := math.Min(r.X+r.Width, other.X+other.Width)
	y1 := math.Min(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.X+r.Width, other.X+other.Width)
	y1 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Selection is a raw user drag between two corner points, in either drag
// direction, display-relative, in the convention named by Origin.
type Selection struct {
	A      Point
	B      Point
	Origin Origin
}

// Normalized returns the direction-corrected rect spanned by the drag.
func (s Selection) Normalized() Rect {
	return Rect{
		X:      math.Min(s.A.X, s.B.X),
		Y:      math.Min(s.A.Y, s.B.Y),
		Width:  math.Abs(s.A.X - s.B.X),
		Height: math.Abs(s.A.Y - s.B.Y),
	}
}

// DisplayGeometry describes one display's pixel extent and backing scale.
// Logical size in points is the pixel size divided by Scale.
type DisplayGeometry struct {
	WidthPx  int
	HeightPx int
	Scale    float64
}

func (d DisplayGeometry) widthPt() float64  { return float64(d.WidthPx) / d.Scale }
func (d DisplayGeometry) heightPt() float64 { return float64(d.HeightPx) / d.Scale }

// MapToPixels converts a selection into a display-relative pixel rectangle
// with a top-left origin, matching what capture backends expect. The
// selection is clamped to the display bounds in point space, flipped when
// its y-origin convention differs from the backend's, scaled, rounded to
// the pixel grid and clamped once more to the display's pixel bounds.
// Returns false when the clamped result is under one pixel in either
// dimension.
func MapToPixels(sel Selection, d DisplayGeometry) (image.Rectangle, bool) {
	if d.Scale <= 0 || d.WidthPx <= 0 || d.HeightPx <= 0 {
		return image.Rectangle{}, false
	}

	r := sel.Normalized()
	if sel.Origin == OriginBottomLeft {
		// Backend rectangles grow downward from the top-left corner.
		r.Y = d.heightPt() - (r.Y + r.Height)
	}

	r = r.Intersect(Rect{Width: d.widthPt(), Height: d.heightPt()})
	if r.Width <= 0 || r.Height <= 0 {
		return image.Rectangle{}, false
	}

	px := image.Rect(
		int(math.Round(r.X*d.Scale)),
		int(math.Round(r.Y*d.Scale)),
		int(math.Round((r.X+r.Width)*d.Scale)),
		int(math.Round((r.Y+r.Height)*d.Scale)),
	)
	px = px.Intersect(image.Rect(0, 0, d.WidthPx, d.HeightPx))
	if px.Dx() < 1 || px.Dy() < 1 {
		return image.Rectangle{}, false
	}
	return px, true
}

// MeetsInteractiveMinimum reports whether a mapped pixel rect clears the
// 10x10 usability floor applied to interactive selections.
func MeetsInteractiveMinimum(px image.Rectangle) bool {
	return px.Dx() >= MinInteractivePx && px.Dy() >= MinInteractivePx
}

// PointsFromPixels maps a display-relative pixel rect back into point
// space. Inverse of MapToPixels up to pixel-grid rounding.
func PointsFromPixels(px image.Rectangle, d DisplayGeometry) Rect {
	return Rect{
		X:      float64(px.Min.X) / d.Scale,
		Y:      float64(px.Min.Y) / d.Scale,
		Width:  float64(px.Dx()) / d.Scale,
		Height: float64(px.Dy()) / d.Scale,
	}
}
