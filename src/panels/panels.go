// Package panels implements the workflow's UI surfaces with fyne: the
// rename prompt, the note prompt and the annotation editor. Each Show
// reports exactly one action back to the event loop; the loop decides
// what surface comes next.
package panels

import (
	"fmt"
	"log"
	"os"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"snapmark/src/annotate"
	"snapmark/src/workflow"
)

// Set owns the fyne application and the three panel windows.
type Set struct {
	app fyne.App

	mu     sync.Mutex
	active fyne.Window
	editor *editorState
}

// editorState carries the annotation engine across a note <-> editor
// round trip so the undo history survives going back. The fingerprint
// guards against the file changing underneath, e.g. a re-burned note,
// while the editor was away.
type editorState struct {
	sess        *workflow.Session
	eng         *annotate.Engine
	fingerprint string
	flattened   bool
}

func fileFingerprint(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d-%d", fi.Size(), fi.ModTime().UnixNano())
}

// rememberEditor stashes a closing editor's engine for a possible
// return from the note step.
func (s *Set) rememberEditor(sess *workflow.Session, eng *annotate.Engine, flattened bool) {
	s.mu.Lock()
	s.editor = &editorState{
		sess:        sess,
		eng:         eng,
		fingerprint: fileFingerprint(sess.Path()),
		flattened:   flattened,
	}
	s.mu.Unlock()
}

// resumeEditor returns the stashed engine when it still belongs to this
// session and the file is untouched since the editor closed. flattened
// reports whether the file already holds composited pixels, in which
// case the next close must rewrite it even if every item was undone.
func (s *Set) resumeEditor(sess *workflow.Session) (eng *annotate.Engine, flattened bool) {
	s.mu.Lock()
	st := s.editor
	s.mu.Unlock()
	if st == nil || st.sess != sess {
		return nil, false
	}
	if st.fingerprint == "" || st.fingerprint != fileFingerprint(sess.Path()) {
		return nil, false
	}
	return st.eng, st.flattened
}

// NewSet creates the fyne application. Call Run from the main goroutine
// afterwards.
func NewSet() *Set {
	return &Set{app: app.NewWithID("io.snapmark.app")}
}

// Run blocks on the fyne event loop until Stop is called.
func (s *Set) Run() { s.app.Run() }

// Stop ends the fyne event loop.
func (s *Set) Stop() { s.app.Quit() }

// reporter delivers at most one action per shown panel, no matter how
// many buttons fire or close events race.
type reporter struct {
	once    sync.Once
	respond func(workflow.Action)
}

func (r *reporter) report(a workflow.Action) {
	r.once.Do(func() { r.respond(a) })
}

func (s *Set) setActive(w fyne.Window) {
	s.mu.Lock()
	prev := s.active
	s.active = w
	s.mu.Unlock()
	if prev != nil && prev != w {
		fyne.Do(prev.Close)
	}
}

// CloseAll tears down whatever panel is open without a report. The
// session is ending one way or another, so the stashed editor state
// goes too.
func (s *Set) CloseAll() {
	s.mu.Lock()
	prev := s.active
	s.active = nil
	s.editor = nil
	s.mu.Unlock()
	if prev != nil {
		fyne.Do(prev.Close)
	}
}

// dispositionRow builds the four terminal buttons every panel carries.
func dispositionRow(r *reporter, payload func() string) *fyne.Container {
	mk := func(label string, cmd workflow.Command) *widget.Button {
		return widget.NewButton(label, func() {
			r.report(workflow.Action{Command: cmd, Payload: payload()})
		})
	}
	return container.NewHBox(
		mk("Save", workflow.CmdSave),
		mk("Copy+Save", workflow.CmdCopySave),
		mk("Copy+Delete", workflow.CmdCopyDelete),
		mk("Delete", workflow.CmdDelete),
	)
}

// ShowRename presents the filename prompt.
func (s *Set) ShowRename(initial string, respond func(workflow.Action)) {
	fyne.Do(func() {
		r := &reporter{respond: respond}
		w := s.app.NewWindow("Snapmark: name this capture")

		entry := widget.NewEntry()
		entry.SetText(initial)
		advance := func() {
			r.report(workflow.Action{Command: workflow.CmdAdvance, Payload: entry.Text})
		}
		entry.OnSubmitted = func(string) { advance() }

		form := widget.NewForm(widget.NewFormItem("Filename", entry))
		next := widget.NewButton("Next", advance)
		next.Importance = widget.HighImportance

		w.SetContent(container.NewVBox(
			form,
			container.NewHBox(next),
			widget.NewSeparator(),
			dispositionRow(r, func() string { return entry.Text }),
		))
		// Closing the window keeps the file and ends the session.
		w.SetCloseIntercept(func() {
			r.report(workflow.Action{Command: workflow.CmdSave})
		})
		w.Resize(fyne.NewSize(420, 160))
		s.setActive(w)
		w.Show()
		w.Canvas().Focus(entry)
	})
}

// ShowNote presents the note prompt with the preserved draft.
func (s *Set) ShowNote(initial string, respond func(workflow.Action)) {
	fyne.Do(func() {
		r := &reporter{respond: respond}
		w := s.app.NewWindow("Snapmark: add a note")

		entry := widget.NewMultiLineEntry()
		entry.SetText(initial)
		entry.Wrapping = fyne.TextWrapWord

		back := widget.NewButton("Back", func() {
			r.report(workflow.Action{Command: workflow.CmdBack, Payload: entry.Text})
		})
		next := widget.NewButton("Next", func() {
			r.report(workflow.Action{Command: workflow.CmdAdvance, Payload: entry.Text})
		})
		next.Importance = widget.HighImportance

		w.SetContent(container.NewBorder(
			nil,
			container.NewVBox(
				container.NewHBox(back, next),
				widget.NewSeparator(),
				dispositionRow(r, func() string { return entry.Text }),
			),
			nil, nil,
			entry,
		))
		w.SetCloseIntercept(func() {
			r.report(workflow.Action{Command: workflow.CmdSave})
		})
		w.Resize(fyne.NewSize(480, 280))
		s.setActive(w)
		w.Show()
		w.Canvas().Focus(entry)
	})
}

// ShowEditor presents the annotation editor over the session's file,
// resuming the previous engine when the user comes back from the note
// step.
func (s *Set) ShowEditor(sess *workflow.Session, respond func(workflow.Action)) {
	fyne.Do(func() {
		r := &reporter{respond: respond}
		ed, err := newEditorWindow(s, sess, r)
		if err != nil {
			log.Printf("editor: %v", err)
			// Fall back to the note step rather than stranding the
			// session behind a surface that cannot open.
			r.report(workflow.Action{Command: workflow.CmdBack})
			return
		}
		s.setActive(ed.win)
		ed.win.Show()
	})
}
