package panels

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"snapmark/src/annotate"
	"snapmark/src/workflow"
)

var editorColors = []struct {
	name string
	rgba color.RGBA
}{
	{"Red", color.RGBA{224, 49, 49, 255}},
	{"Blue", color.RGBA{0, 120, 212, 255}},
	{"Green", color.RGBA{47, 158, 68, 255}},
	{"Yellow", color.RGBA{250, 176, 5, 255}},
	{"Black", color.RGBA{0, 0, 0, 255}},
}

var editorTools = []struct {
	name string
	tool annotate.Tool
}{
	{"Pen", annotate.ToolStroke},
	{"Arrow", annotate.ToolArrow},
	{"Rectangle", annotate.ToolRect},
	{"Ellipse", annotate.ToolEllipse},
	{"Text", annotate.ToolText},
}

// editorWindow hosts the annotation engine over the session's file.
type editorWindow struct {
	win    fyne.Window
	set    *Set
	sess   *workflow.Session
	eng    *annotate.Engine
	r      *reporter
	raster *fynecanvas.Raster
	canvas *annotCanvas

	// flattened means the file already holds composited pixels from an
	// earlier close of this engine, so the next close must rewrite the
	// file even with every item undone.
	flattened      bool
	textDialogOpen bool
}

func newEditorWindow(set *Set, sess *workflow.Session, r *reporter) (*editorWindow, error) {
	eng, flattened := set.resumeEditor(sess)
	if eng == nil {
		f, err := os.Open(sess.Path())
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		eng = annotate.New(img)
	}

	ed := &editorWindow{
		win:       set.app.NewWindow("Snapmark: annotate"),
		set:       set,
		sess:      sess,
		eng:       eng,
		r:         r,
		flattened: flattened,
	}

	ed.raster = fynecanvas.NewRaster(ed.draw)
	ed.raster.ScaleMode = fynecanvas.ImageScalePixels
	cb := eng.CanvasBounds()
	ed.raster.SetMinSize(fyne.NewSize(float32(cb.Width), float32(cb.Height)))
	ed.canvas = newAnnotCanvas(ed)

	scroll := container.NewScroll(ed.canvas)
	ed.win.SetContent(container.NewBorder(
		ed.toolbar(),
		ed.bottomRow(),
		nil, nil,
		scroll,
	))
	ed.win.SetCloseIntercept(func() { ed.finish(workflow.Action{Command: workflow.CmdSave}) })
	ed.win.Resize(fyne.NewSize(float32(cb.Width)+40, float32(cb.Height)+140))
	return ed, nil
}

func (ed *editorWindow) toolbar() fyne.CanvasObject {
	toolNames := make([]string, len(editorTools))
	for i, t := range editorTools {
		toolNames[i] = t.name
	}
	toolSel := widget.NewSelect(toolNames, func(name string) {
		for _, t := range editorTools {
			if t.name == name {
				ed.eng.SetTool(t.tool)
				return
			}
		}
	})
	toolSel.SetSelected("Pen")

	colorNames := make([]string, len(editorColors))
	for i, c := range editorColors {
		colorNames[i] = c.name
	}
	colorSel := widget.NewSelect(colorNames, func(name string) {
		for _, c := range editorColors {
			if c.name == name {
				ed.eng.SetColor(c.rgba)
				return
			}
		}
	})
	colorSel.SetSelected("Red")

	width := widget.NewSlider(1, 12)
	width.SetValue(3)
	width.OnChanged = func(v float64) { ed.eng.SetWidth(v) }

	undo := widget.NewButton("Undo", func() {
		ed.eng.Undo()
		ed.refresh()
	})
	clear := widget.NewButton("Clear", func() {
		ed.eng.Clear()
		ed.refresh()
	})

	return container.NewHBox(toolSel, colorSel, width, undo, clear)
}

func (ed *editorWindow) bottomRow() fyne.CanvasObject {
	back := widget.NewButton("Back", func() {
		ed.finish(workflow.Action{Command: workflow.CmdBack})
	})
	mk := func(label string, cmd workflow.Command) *widget.Button {
		return widget.NewButton(label, func() {
			ed.finish(workflow.Action{Command: cmd})
		})
	}
	save := mk("Save", workflow.CmdSave)
	save.Importance = widget.HighImportance
	return container.NewHBox(
		back,
		widget.NewSeparator(),
		save,
		mk("Copy+Save", workflow.CmdCopySave),
		mk("Copy+Delete", workflow.CmdCopyDelete),
		mk("Delete", workflow.CmdDelete),
	)
}

// finish flattens pending annotations into the file, then reports the
// terminating action. A failed write still reports so the session is
// never stranded; the backup holds the pre-editor image. The engine is
// stashed on the Set afterwards so a note-panel detour back into the
// editor keeps its undo stack.
func (ed *editorWindow) finish(a workflow.Action) {
	if ed.eng.Editing() {
		ed.eng.CancelTextEdit()
	}
	if ed.eng.ItemCount() > 0 || ed.flattened {
		if err := ed.sess.WriteAnnotated(ed.eng.Composite()); err != nil {
			log.Printf("editor: flatten failed: %v", err)
		} else {
			ed.flattened = true
		}
	}
	ed.set.rememberEditor(ed.sess, ed.eng, ed.flattened)
	ed.r.report(a)
}

func (ed *editorWindow) draw(w, h int) image.Image {
	return ed.eng.PreviewComposite()
}

func (ed *editorWindow) refresh() {
	cb := ed.eng.CanvasBounds()
	ed.raster.SetMinSize(fyne.NewSize(float32(cb.Width), float32(cb.Height)))
	ed.canvas.Refresh()
}

// afterPointer opens the in-place text entry when a pointer action
// started or resumed a text edit session.
func (ed *editorWindow) afterPointer() {
	ed.refresh()
	if !ed.eng.Editing() || ed.textDialogOpen {
		return
	}
	ed.textDialogOpen = true

	entry := widget.NewMultiLineEntry()
	if idx := ed.eng.EditedItem(); idx >= 0 {
		entry.SetText(ed.eng.Items()[idx].Text)
	}
	d := dialog.NewCustomConfirm("Text", "OK", "Cancel", entry, func(ok bool) {
		ed.textDialogOpen = false
		if ok {
			ed.eng.CommitTextEdit(entry.Text)
		} else {
			ed.eng.CancelTextEdit()
		}
		ed.refresh()
	}, ed.win)
	d.Resize(fyne.NewSize(320, 160))
	d.Show()
	ed.win.Canvas().Focus(entry)
}

// annotCanvas feeds pointer events from the raster into the engine.
type annotCanvas struct {
	widget.BaseWidget
	ed       *editorWindow
	dragging bool
	last     annotate.Point
}

func newAnnotCanvas(ed *editorWindow) *annotCanvas {
	ac := &annotCanvas{ed: ed}
	ac.ExtendBaseWidget(ac)
	return ac
}

func (ac *annotCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ac.ed.raster)
}

func (ac *annotCanvas) MinSize() fyne.Size {
	return ac.ed.raster.MinSize()
}

func (ac *annotCanvas) point(pos fyne.Position) annotate.Point {
	// The raster renders CanvasBounds at 1:1, so widget coordinates
	// only need the bounds origin added back.
	cb := ac.ed.eng.CanvasBounds()
	return annotate.Point{X: float64(pos.X) + cb.X, Y: float64(pos.Y) + cb.Y}
}

func (ac *annotCanvas) Dragged(ev *fyne.DragEvent) {
	p := ac.point(ev.Position)
	if !ac.dragging {
		ac.dragging = true
		start := ac.point(fyne.Position{
			X: ev.Position.X - ev.Dragged.DX,
			Y: ev.Position.Y - ev.Dragged.DY,
		})
		ac.ed.eng.PointerDown(start, 1)
	}
	ac.ed.eng.PointerDrag(p)
	ac.last = p
	ac.ed.canvas.Refresh()
}

func (ac *annotCanvas) DragEnd() {
	if !ac.dragging {
		return
	}
	ac.dragging = false
	ac.ed.eng.PointerUp(ac.last)
	ac.ed.afterPointer()
}

func (ac *annotCanvas) Tapped(ev *fyne.PointEvent) {
	p := ac.point(ev.Position)
	ac.ed.eng.PointerDown(p, 1)
	ac.ed.eng.PointerUp(p)
	ac.ed.afterPointer()
}

func (ac *annotCanvas) DoubleTapped(ev *fyne.PointEvent) {
	p := ac.point(ev.Position)
	ac.ed.eng.PointerDown(p, 2)
	ac.ed.eng.PointerUp(p)
	ac.ed.afterPointer()
}
