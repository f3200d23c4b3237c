// Package eventloop is the single-goroutine coordinator. Every state
// transition of the app runs here: hotkey triggers, control-channel
// commands, finished captures and panel responses all funnel into one
// select loop, so the capture coordinator and the workflow session never
// see concurrent callers.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapmark/src/caption"
	"snapmark/src/capture"
	"snapmark/src/config"
	"snapmark/src/control"
	"snapmark/src/hotkey"
	"snapmark/src/naming"
	"snapmark/src/notification"
	"snapmark/src/screenshot"
	"snapmark/src/tray"
	"snapmark/src/workflow"
)

// Panels is the UI surface set the loop drives. Implementations post the
// respond callback from their own goroutine; the loop re-serializes it.
type Panels interface {
	ShowRename(initial string, respond func(workflow.Action))
	ShowNote(initial string, respond func(workflow.Action))
	ShowEditor(sess *workflow.Session, respond func(workflow.Action))
	CloseAll()
}

// Loop owns the resident process state: at most one in-flight capture
// and at most one live workflow session.
type Loop struct {
	cfg    *config.Config
	coord  *capture.Coordinator
	panels Panels
	clip   workflow.Clipboard
	srv    control.Server

	sess    *workflow.Session
	counter int

	areaCh  chan struct{}
	fullCh  chan struct{}
	actions chan workflow.Action

	defaultTooltip string
	now            func() time.Time
	primaryDisplay func(scale float64) (screenshot.Display, error)
}

// New wires a loop. coord and panels must be non-nil; clip is the
// disposition sink.
func New(cfg *config.Config, coord *capture.Coordinator, panels Panels, clip workflow.Clipboard) *Loop {
	counter := 1
	if cfg != nil && cfg.Counter > 0 {
		counter = cfg.Counter
	}
	return &Loop{
		cfg:            cfg,
		coord:          coord,
		panels:         panels,
		clip:           clip,
		counter:        counter,
		areaCh:         make(chan struct{}, 4),
		fullCh:         make(chan struct{}, 4),
		actions:        make(chan workflow.Action, 4),
		defaultTooltip: "Snapmark",
		now:            time.Now,
		primaryDisplay: screenshot.PrimaryDisplay,
	}
}

// SetDefaultTooltip sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// TriggerAreaCapture requests an area capture. Safe from any goroutine;
// dropped when the loop's queue is full.
func (l *Loop) TriggerAreaCapture() {
	select {
	case l.areaCh <- struct{}{}:
	default:
	}
}

// TriggerFullCapture requests a full-display capture.
func (l *Loop) TriggerFullCapture() {
	select {
	case l.fullCh <- struct{}{}:
	default:
	}
}

// StartHotkeys registers the configured global hotkeys.
func (l *Loop) StartHotkeys() {
	if l.cfg == nil {
		return
	}
	if l.cfg.Hotkey != "" {
		hotkey.Listen(l.cfg.Hotkey, l.TriggerAreaCapture)
	}
	if l.cfg.FullHotkey != "" {
		hotkey.Listen(l.cfg.FullHotkey, l.TriggerFullCapture)
	}
}

// Run starts the control server and processes events until ctx is
// cancelled. A control bind failure means another resident instance owns
// the channel and is returned as-is.
func (l *Loop) Run(ctx context.Context) error {
	l.srv = control.NewServer()
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	defer l.coord.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("Resident listening on 127.0.0.1:%d", p)
	}

	// Accept in the background so a slow client never stalls results.
	cmdCh := make(chan control.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(cmdCh)
				return
			}
			cmdCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.areaCh:
			l.handleAreaTrigger(ctx)
		case <-l.fullCh:
			l.handleFullTrigger(ctx)
		case conn, ok := <-cmdCh:
			if !ok {
				return nil
			}
			l.handleCommand(ctx, conn)
		case out := <-l.coord.Selections():
			l.handleSelection(ctx, out)
		case res := <-l.coord.Results():
			l.handleResult(res)
		case a := <-l.actions:
			l.handleAction(a)
		}
	}
}

func (l *Loop) handleAreaTrigger(ctx context.Context) {
	if l.sess != nil {
		log.Printf("area capture ignored: %v", workflow.ErrSessionActive)
		return
	}
	switch err := l.coord.BeginAreaCapture(ctx); {
	case err == nil:
		tray.UpdateTooltip(l.defaultTooltip + ": selecting...")
	case errors.Is(err, capture.ErrBusy):
		log.Printf("area capture ignored: busy")
	default:
		log.Printf("area capture failed: %v", err)
	}
}

// handleSelection finishes an overlay interaction once the selector
// goroutine posts its outcome. The loop stayed free for the whole drag,
// so a full trigger or control command may already have voided it.
func (l *Loop) handleSelection(ctx context.Context, out capture.SelectionOutcome) {
	switch err := l.coord.FinishSelection(ctx, out); {
	case err == nil:
		tray.UpdateTooltip(l.defaultTooltip + ": capturing...")
	case errors.Is(err, capture.ErrSelectionCancelled):
		// Silent by contract.
		tray.UpdateTooltip(l.defaultTooltip)
	case errors.Is(err, capture.ErrBusy):
		log.Printf("area selection superseded by another capture")
	default:
		log.Printf("area capture failed: %v", err)
		tray.UpdateTooltip(l.defaultTooltip)
	}
}

func (l *Loop) handleFullTrigger(ctx context.Context) {
	if l.sess != nil {
		log.Printf("full capture ignored: %v", workflow.ErrSessionActive)
		return
	}
	d, err := l.primaryDisplay(l.displayScale())
	if err != nil {
		log.Printf("full capture failed: no displays (%v)", err)
		return
	}
	switch err := l.coord.CaptureFullDisplay(ctx, d); {
	case err == nil:
		tray.UpdateTooltip(l.defaultTooltip + ": capturing...")
	case errors.Is(err, capture.ErrBusy):
		log.Printf("full capture ignored: busy")
	default:
		log.Printf("full capture failed: %v", err)
	}
}

func (l *Loop) displayScale() float64 {
	if l.cfg != nil && l.cfg.DisplayScale > 0 {
		return l.cfg.DisplayScale
	}
	return 1
}

func (l *Loop) handleCommand(ctx context.Context, conn control.Conn) {
	defer conn.Close()
	switch conn.Verb() {
	case control.VerbFull:
		if l.sess != nil {
			_ = conn.RespondError(workflow.ErrSessionActive.Error())
			return
		}
		l.TriggerFullCapture()
		_ = conn.RespondOK()
	case control.VerbCancel:
		switch {
		case l.sess != nil:
			l.cancelSession()
			_ = conn.RespondOK()
		case l.coord.InProgress() || l.coord.OverlayOpen():
			l.coord.CancelPending()
			tray.UpdateTooltip(l.defaultTooltip)
			_ = conn.RespondOK()
		default:
			_ = conn.RespondError("nothing to cancel")
		}
	default:
		_ = conn.RespondError(fmt.Sprintf("unknown verb %q", conn.Verb()))
	}
}

func (l *Loop) handleResult(res capture.Result) {
	if !l.coord.Accept(res) {
		return
	}
	tray.UpdateTooltip(l.defaultTooltip)
	if res.Err != nil {
		log.Printf("capture failed: %v", res.Err)
		return
	}
	if l.sess != nil {
		// Should not happen: triggers are gated on the session. Guard
		// anyway so a racing result cannot orphan a session.
		log.Printf("capture result dropped: %v", workflow.ErrSessionActive)
		return
	}

	path, err := l.saveCapture(res)
	if err != nil {
		log.Printf("saving capture: %v", err)
		return
	}
	log.Printf("captured %s", path)

	l.sess = workflow.NewSession(path, res.Display, l.sessionSettings(), l.clip)
	tray.UpdateTooltip(l.defaultTooltip + ": session active")
	l.panels.ShowRename(stemOf(path), l.respond)
}

func (l *Loop) sessionSettings() workflow.Settings {
	s := workflow.Settings{Quality: config.DefaultQuality}
	if l.cfg != nil {
		s.Quality = l.cfg.Quality
		s.MaxWidth = l.cfg.MaxWidth
		s.NotePrefixEnabled = l.cfg.NotePrefixEnabled
		s.NotePrefix = l.cfg.NotePrefix
	}
	return s
}

func (l *Loop) saveCapture(res capture.Result) (string, error) {
	saveDir := "."
	quality := config.DefaultQuality
	maxWidth := 0
	if l.cfg != nil {
		saveDir = l.cfg.SaveDir
		quality = l.cfg.Quality
		maxWidth = l.cfg.MaxWidth
	}
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}

	img := caption.ResizeToMaxWidth(res.Image, maxWidth)
	base := naming.MakeFilename(l.now(), l.counter)
	l.counter++
	path := naming.EnsureUnique(saveDir, base, ".jpg")
	if err := caption.WriteImage(path, img, caption.Options{Quality: quality}); err != nil {
		return "", err
	}
	return path, nil
}

// respond posts a panel action back into the loop. Called from UI
// goroutines.
func (l *Loop) respond(a workflow.Action) {
	select {
	case l.actions <- a:
	default:
		log.Printf("panel action %s dropped: queue full", a.Command)
	}
}

func (l *Loop) handleAction(a workflow.Action) {
	if l.sess == nil {
		log.Printf("panel action %s ignored: no session", a.Command)
		return
	}

	if d, ok := a.Command.Disposition(); ok {
		path := l.sess.Path()
		l.panels.CloseAll()
		if err := l.sess.Dispose(d); err != nil {
			log.Printf("disposition %s failed: %v", a.Command, err)
			notification.Notify(fmt.Sprintf("%s failed: %v", a.Command, err))
			l.reshow()
			return
		}
		l.sess = nil
		tray.UpdateTooltip(l.defaultTooltip)
		notification.Notify(dispositionMessage(d, path))
		return
	}

	state := l.sess.State()
	switch a.Command {
	case workflow.CmdAdvance:
		l.advance(state, a.Payload)
	case workflow.CmdBack:
		l.back(state, a.Payload)
	default:
		log.Printf("panel action %s ignored in state %s", a.Command, state)
	}
}

func (l *Loop) advance(state workflow.State, payload string) {
	switch state {
	case workflow.StateRenamePending:
		if err := l.sess.ApplyRename(payload); err != nil {
			log.Printf("rename rejected: %v", err)
			l.panels.ShowRename(payload, l.respond)
			return
		}
		l.panels.ShowNote(l.sess.PendingNote(), l.respond)
	case workflow.StateNotePending:
		if err := l.sess.ApplyNote(payload); err != nil {
			log.Printf("note rejected: %v", err)
			l.panels.ShowNote(payload, l.respond)
			return
		}
		l.panels.ShowEditor(l.sess, l.respond)
	default:
		log.Printf("advance ignored in state %s", state)
	}
}

func (l *Loop) back(state workflow.State, payload string) {
	switch state {
	case workflow.StateNotePending:
		if err := l.sess.BackToRename(payload); err != nil {
			log.Printf("back to rename: %v", err)
			return
		}
		l.panels.ShowRename(stemOf(l.sess.Path()), l.respond)
	case workflow.StateEditorOpen:
		if err := l.sess.BackToNote(); err != nil {
			log.Printf("back to note: %v", err)
			return
		}
		l.panels.ShowNote(l.sess.PendingNote(), l.respond)
	default:
		log.Printf("back ignored in state %s", state)
	}
}

// reshow re-presents the panel for the session's current state after a
// failed disposition, so the user is not left with no surface.
func (l *Loop) reshow() {
	switch l.sess.State() {
	case workflow.StateRenamePending:
		l.panels.ShowRename(stemOf(l.sess.Path()), l.respond)
	case workflow.StateNotePending:
		l.panels.ShowNote(l.sess.PendingNote(), l.respond)
	case workflow.StateEditorOpen:
		l.panels.ShowEditor(l.sess, l.respond)
	case workflow.StateDisposed:
		l.sess = nil
		tray.UpdateTooltip(l.defaultTooltip)
	}
}

func (l *Loop) cancelSession() {
	l.panels.CloseAll()
	l.sess.Cancel()
	l.sess = nil
	tray.UpdateTooltip(l.defaultTooltip)
}

func dispositionMessage(d workflow.Disposition, path string) string {
	switch d {
	case workflow.Save:
		return fmt.Sprintf("Saved %s", filepath.Base(path))
	case workflow.CopySave:
		return fmt.Sprintf("Copied and saved %s", filepath.Base(path))
	case workflow.CopyDelete:
		return "Copied to clipboard, file deleted"
	case workflow.DeleteOnly:
		return "Capture deleted"
	}
	return "Done"
}

func stemOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
