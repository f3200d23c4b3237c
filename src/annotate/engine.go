package annotate

import (
	"image"
	"image/color"
	"math"
)

// Tool selects what pointer input produces.
type Tool int

const (
	ToolStroke Tool = iota
	ToolArrow
	ToolRect
	ToolEllipse
	ToolText
)

const (
	// UndoDepth bounds the snapshot stack; the oldest snapshot is
	// evicted on overflow.
	UndoDepth = 30

	// minCommitPx rejects accidental zero-length drags.
	minCommitPx = 3.0

	defaultFontSize = 18.0
)

// TextEditSession is the transient state of one text annotation being
// typed into.
type TextEditSession struct {
	itemIndex    int
	originalText string
	newlyCreated bool
	// before is the pre-operation snapshot pushed if the edit commits
	// with an actual change.
	before []Item
}

type dragState struct {
	start  Point
	cur    Point
	points []Point
}

type textDragState struct {
	itemIndex int
	last      Point
	moved     bool
	before    []Item
}

// Engine is the annotation canvas. All operations are local state
// mutations with no I/O; invalid input degrades to a no-op.
type Engine struct {
	base image.Image

	items []Item
	undo  [][]Item

	tool     Tool
	color    color.RGBA
	width    float64
	fontSize float64

	drag     *dragState
	textDrag *textDragState
	edit     *TextEditSession
}

// New creates an engine over a base image.
func New(base image.Image) *Engine {
	return &Engine{
		base:     base,
		tool:     ToolStroke,
		color:    color.RGBA{R: 224, G: 49, B: 49, A: 255},
		width:    3,
		fontSize: defaultFontSize,
	}
}

func (e *Engine) SetTool(t Tool)        { e.tool = t }
func (e *Engine) SetColor(c color.RGBA) { e.color = c }
func (e *Engine) SetWidth(w float64)    { e.width = w }
func (e *Engine) SetFontSize(s float64) { e.fontSize = s }
func (e *Engine) Tool() Tool            { return e.tool }
func (e *Engine) UndoDepthUsed() int    { return len(e.undo) }
func (e *Engine) Editing() bool         { return e.edit != nil }

// Items returns a detached copy of the committed items, so callers
// cannot reach behind the undo stack's back.
func (e *Engine) Items() []Item { return cloneItems(e.items) }

// ItemCount reports the number of committed items without copying.
func (e *Engine) ItemCount() int { return len(e.items) }

// pushUndo records a pre-operation snapshot, evicting the oldest when the
// stack is full.
func (e *Engine) pushUndo(snapshot []Item) {
	if len(e.undo) == UndoDepth {
		e.undo = e.undo[1:]
	}
	e.undo = append(e.undo, snapshot)
}

// Undo restores the most recent snapshot wholesale. No-op when empty.
func (e *Engine) Undo() {
	if len(e.undo) == 0 {
		return
	}
	last := len(e.undo) - 1
	e.items = e.undo[last]
	e.undo = e.undo[:last]
}

// Clear empties the canvas, recording one undo snapshot first. A canvas
// with no items stays untouched.
func (e *Engine) Clear() {
	if len(e.items) == 0 {
		return
	}
	e.pushUndo(cloneItems(e.items))
	e.items = nil
}

// PointerDown begins a drag or, for the text tool, a text interaction.
// clicks distinguishes single from double clicks on existing text items.
func (e *Engine) PointerDown(p Point, clicks int) {
	if e.edit != nil {
		// Typing takes priority; the UI commits or cancels first.
		return
	}
	if e.tool == ToolText {
		e.textPointerDown(p, clicks)
		return
	}
	e.drag = &dragState{start: p, cur: p, points: []Point{p}}
}

// PointerDrag extends the in-progress drag. Shape tools update the live
// preview; a single-click text drag repositions the item.
func (e *Engine) PointerDrag(p Point) {
	if td := e.textDrag; td != nil {
		dx, dy := p.X-td.last.X, p.Y-td.last.Y
		if dx != 0 || dy != 0 {
			e.items[td.itemIndex].Origin.X += dx
			e.items[td.itemIndex].Origin.Y += dy
			td.last = p
			td.moved = true
		}
		return
	}
	if e.drag == nil {
		return
	}
	e.drag.cur = p
	if e.tool == ToolStroke {
		e.drag.points = append(e.drag.points, p)
	}
}

// PointerUp commits the drag. Shapes below the minimum size threshold are
// discarded without an undo entry.
func (e *Engine) PointerUp(p Point) {
	if td := e.textDrag; td != nil {
		e.textDrag = nil
		if td.moved {
			e.pushUndo(td.before)
		}
		return
	}
	d := e.drag
	if d == nil {
		return
	}
	e.drag = nil
	d.cur = p
	if e.tool == ToolStroke {
		d.points = append(d.points, p)
	}

	item, ok := e.buildShape(d)
	if !ok {
		return
	}
	e.pushUndo(cloneItems(e.items))
	e.items = append(e.items, item)
}

// InProgress returns the live preview of the current drag, if any.
func (e *Engine) InProgress() (Item, bool) {
	if e.drag == nil {
		return Item{}, false
	}
	if item, ok := e.buildShape(e.drag); ok {
		return item, true
	}
	// Too small to commit yet; still preview the raw drag.
	return Item{Kind: KindRect, Color: e.color, Width: e.width, Box: rectFromCorners(e.drag.start, e.drag.cur)}, true
}

func (e *Engine) buildShape(d *dragState) (Item, bool) {
	switch e.tool {
	case ToolStroke:
		if pathLength(d.points) < minCommitPx {
			return Item{}, false
		}
		pts := make([]Point, len(d.points))
		copy(pts, d.points)
		return Item{Kind: KindStroke, Color: e.color, Width: e.width, Points: pts}, true
	case ToolArrow:
		if dist(d.start, d.cur) < minCommitPx {
			return Item{}, false
		}
		return Item{Kind: KindArrow, Color: e.color, Width: e.width, Start: d.start, End: d.cur}, true
	case ToolRect, ToolEllipse:
		box := rectFromCorners(d.start, d.cur)
		if box.Width < minCommitPx || box.Height < minCommitPx {
			return Item{}, false
		}
		kind := KindRect
		if e.tool == ToolEllipse {
			kind = KindEllipse
		}
		return Item{Kind: kind, Color: e.color, Width: e.width, Box: box}, true
	}
	return Item{}, false
}

func (e *Engine) textPointerDown(p Point, clicks int) {
	// Topmost text item under the pointer wins.
	for i := len(e.items) - 1; i >= 0; i-- {
		it := e.items[i]
		if it.Kind != KindText || !it.Bounds().contains(p) {
			continue
		}
		if clicks >= 2 {
			e.edit = &TextEditSession{
				itemIndex:    i,
				originalText: it.Text,
				before:       cloneItems(e.items),
			}
			return
		}
		e.textDrag = &textDragState{itemIndex: i, last: p, before: cloneItems(e.items)}
		return
	}

	// Empty canvas spot: create a new, initially empty item and edit it.
	before := cloneItems(e.items)
	e.items = append(e.items, Item{
		Kind:     KindText,
		Color:    e.color,
		Origin:   p,
		FontSize: e.fontSize,
	})
	e.edit = &TextEditSession{
		itemIndex:    len(e.items) - 1,
		newlyCreated: true,
		before:       before,
	}
}

// EditedItem returns the index of the item under edit, or -1.
func (e *Engine) EditedItem() int {
	if e.edit == nil {
		return -1
	}
	return e.edit.itemIndex
}

// CommitTextEdit finalizes the open edit session with the typed text.
// Empty text discards a newly created item or reverts an edited one; a
// real content change updates the item and records one undo snapshot.
func (e *Engine) CommitTextEdit(text string) {
	s := e.edit
	if s == nil {
		return
	}
	e.edit = nil

	if text == "" {
		e.revertEdit(s)
		return
	}
	if !s.newlyCreated && text == s.originalText {
		// Re-confirming unchanged text is not an operation.
		return
	}
	e.items[s.itemIndex].Text = text
	e.items[s.itemIndex].Color = e.color
	e.pushUndo(s.before)
}

// CancelTextEdit abandons the open edit session, restoring the pre-edit
// state exactly. Never records an undo entry.
func (e *Engine) CancelTextEdit() {
	s := e.edit
	if s == nil {
		return
	}
	e.edit = nil
	e.revertEdit(s)
}

func (e *Engine) revertEdit(s *TextEditSession) {
	if s.newlyCreated {
		e.items = e.items[:s.itemIndex]
		return
	}
	e.items[s.itemIndex].Text = s.originalText
}

// CanvasBounds is the union of the base image rect and every item's
// bounding box, so annotations past the edges stay visible.
func (e *Engine) CanvasBounds() Rect {
	return canvasBoundsOf(e.base, e.items)
}

func canvasBoundsOf(base image.Image, items []Item) Rect {
	b := base.Bounds()
	out := Rect{
		X:      float64(b.Min.X),
		Y:      float64(b.Min.Y),
		Width:  float64(b.Dx()),
		Height: float64(b.Dy()),
	}
	for _, it := range items {
		out = out.Union(it.Bounds())
	}
	return out
}

func pathLength(pts []Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += dist(pts[i-1], pts[i])
	}
	return total
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
