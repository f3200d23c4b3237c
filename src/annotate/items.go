// Package annotate is an editable vector-annotation canvas over a base
// image: freehand strokes, arrows, rectangles, ellipses and inline text,
// with a bounded snapshot undo stack. All coordinates are in the base
// image's native pixel space, not the on-screen zoomed space.
package annotate

import (
	"image/color"
	"math"
)

// Kind discriminates the closed set of annotation variants.
type Kind int

const (
	KindStroke Kind = iota
	KindArrow
	KindRect
	KindEllipse
	KindText
)

// Point is a position in base-image pixel space.
type Point struct {
	X float64
	Y float64
}

// Rect is a min-corner plus positive size rectangle in base-image space.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Union returns the smallest rect containing both.
func (r Rect) Union(other Rect) Rect {
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.X+r.Width, other.X+other.Width)
	y1 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

func rectFromCorners(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// Item is one committed annotation. Kind selects which fields are
// meaningful: Points for strokes, Start/End for arrows, Box for rects and
// ellipses, Text/Origin/FontSize for text.
type Item struct {
	Kind  Kind
	Color color.RGBA
	Width float64

	Points []Point
	Start  Point
	End    Point
	Box    Rect

	Text     string
	Origin   Point
	FontSize float64
}

// clone deep-copies the item so undo snapshots cannot alias live state.
func (it Item) clone() Item {
	out := it
	if it.Points != nil {
		out.Points = make([]Point, len(it.Points))
		copy(out.Points, it.Points)
	}
	return out
}

// Bounds returns the item's bounding box including stroke width.
func (it Item) Bounds() Rect {
	switch it.Kind {
	case KindStroke:
		if len(it.Points) == 0 {
			return Rect{}
		}
		b := Rect{X: it.Points[0].X, Y: it.Points[0].Y}
		for _, p := range it.Points[1:] {
			b = b.Union(Rect{X: p.X, Y: p.Y})
		}
		return b.inflate(it.Width / 2)
	case KindArrow:
		b := rectFromCorners(it.Start, it.End)
		// Head fans out beyond the line by a few multiples of the width.
		return b.inflate(it.Width/2 + arrowHeadSize(it.Width))
	case KindRect, KindEllipse:
		return it.Box.inflate(it.Width / 2)
	case KindText:
		w, h := measureText(it.Text, it.FontSize)
		return Rect{X: it.Origin.X, Y: it.Origin.Y, Width: w, Height: h}
	}
	return Rect{}
}

func (r Rect) inflate(by float64) Rect {
	return Rect{X: r.X - by, Y: r.Y - by, Width: r.Width + 2*by, Height: r.Height + 2*by}
}

func arrowHeadSize(width float64) float64 {
	s := width * 4
	if s < 8 {
		s = 8
	}
	return s
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}
