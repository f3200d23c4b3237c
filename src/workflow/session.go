// Package workflow owns one capture's lifecycle: the on-disk file, the
// rename -> note -> editor pipeline, backup safety, and the terminal
// disposition.
package workflow

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"snapmark/src/caption"
	"snapmark/src/screenshot"
)

// State is the session's position in the pipeline. Disposed is terminal.
type State int

const (
	StateRenamePending State = iota
	StateNotePending
	StateEditorOpen
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateRenamePending:
		return "rename-pending"
	case StateNotePending:
		return "note-pending"
	case StateEditorOpen:
		return "editor-open"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Disposition is the terminal outcome of a session.
type Disposition int

const (
	Save Disposition = iota
	CopySave
	CopyDelete
	DeleteOnly
)

// MaxNoteLen caps burned note text, in characters.
const MaxNoteLen = 1000

var (
	ErrSessionActive = errors.New("a capture session is already active")
	ErrDisposed      = errors.New("session already disposed")
	ErrWrongState    = errors.New("transition not allowed in current state")
)

// Clipboard is the sink the dispositions write to. Image and file
// reference writes succeed independently.
type Clipboard interface {
	WriteImage(data []byte) error
	WriteFileReference(path string) error
}

// Settings are the already-validated values the session reads.
type Settings struct {
	Quality           int
	MaxWidth          int
	NotePrefixEnabled bool
	NotePrefix        string
}

// BurnFunc burns note text onto the image file. Injected so tests can
// observe burns without real image I/O.
type BurnFunc func(path, text string, opts caption.Options) error

// Session is one in-flight capture's mutable workflow state. All
// transitions run on the event-loop goroutine; the mutex sequences file
// writes should a control-channel command race a panel command.
type Session struct {
	mu sync.Mutex

	state          State
	path           string
	display        screenshot.Display
	backupCreated  bool
	pendingNote    string
	lastBurnedNote string

	settings Settings
	clip     Clipboard
	burn     BurnFunc
}

// NewSession takes ownership of the file at path.
func NewSession(path string, display screenshot.Display, settings Settings, clip Clipboard) *Session {
	return &Session{
		state:    StateRenamePending,
		path:     path,
		display:  display,
		settings: settings,
		clip:     clip,
		burn:     caption.Burn,
	}
}

// SetBurnFunc replaces the caption burner; for tests.
func (s *Session) SetBurnFunc(f BurnFunc) { s.burn = f }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// PendingNote returns the draft note text preserved across back
// transitions.
func (s *Session) PendingNote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingNote
}

// SetPendingNote stores draft note text without burning it, so a
// note -> rename back transition does not lose what the user typed.
func (s *Session) SetPendingNote(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNote = text
}

// BackupPath is where the pre-mutation copy lives.
func (s *Session) BackupPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return backupPathFor(s.path)
}

func backupPathFor(path string) string { return path + ".bak" }

// sanitizeStem strips path separators, reserved characters and control
// characters from a proposed file stem. An empty result falls back to the
// previous stem.
func sanitizeStem(proposed, previous string) string {
	var b strings.Builder
	for _, r := range proposed {
		if r < 0x20 || strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return previous
	}
	return s
}

// ApplyRename sanitizes the proposed name, renames the backing file (and
// its backup, if one exists) and advances to the note step. A proposal
// equal to the current name advances without touching the disk. On
// failure the session stays in the rename step.
func (s *Session) ApplyRename(proposed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrDisposed
	}
	if s.state != StateRenamePending {
		return ErrWrongState
	}

	ext := filepath.Ext(s.path)
	curStem := strings.TrimSuffix(filepath.Base(s.path), ext)

	proposed = strings.TrimSpace(proposed)
	if strings.EqualFold(filepath.Ext(proposed), ext) {
		proposed = strings.TrimSuffix(proposed, filepath.Ext(proposed))
	}
	stem := sanitizeStem(proposed, curStem)

	if stem == curStem {
		s.state = StateNotePending
		return nil
	}

	newPath := filepath.Join(filepath.Dir(s.path), stem+ext)
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("a file named %q already exists", stem+ext)
	}
	if err := os.Rename(s.path, newPath); err != nil {
		return fmt.Errorf("rename failed: %w", err)
	}
	if s.backupCreated {
		if err := os.Rename(backupPathFor(s.path), backupPathFor(newPath)); err != nil {
			// Keep file and backup paired: roll the rename back.
			if rbErr := os.Rename(newPath, s.path); rbErr != nil {
				log.Printf("ApplyRename: rollback failed: %v", rbErr)
			}
			return fmt.Errorf("rename backup failed: %w", err)
		}
	}
	s.path = newPath
	s.state = StateNotePending
	return nil
}

// BackToRename returns from the note step to the rename step, keeping
// the supplied note draft.
func (s *Session) BackToRename(noteDraft string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNotePending {
		return ErrWrongState
	}
	s.pendingNote = noteDraft
	s.state = StateRenamePending
	return nil
}

// BackToNote returns from the editor to the note step.
func (s *Session) BackToNote() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditorOpen {
		return ErrWrongState
	}
	s.state = StateNotePending
	return nil
}

// PrepareNote trims, caps and prefixes raw note text exactly the way
// ApplyNote will burn it.
func (s *Session) PrepareNote(raw string) string {
	return prepareNote(raw, s.settings)
}

func prepareNote(raw string, settings Settings) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if r := []rune(text); len(r) > MaxNoteLen {
		text = string(r[:MaxNoteLen])
	}
	if settings.NotePrefixEnabled && settings.NotePrefix != "" {
		text = settings.NotePrefix + text
	}
	return text
}

// ApplyNote burns the note onto the image and advances to the editor.
// Empty text advances without burning. Re-confirming the text that was
// already burned for this session does not burn twice. An I/O failure
// aborts the transition with the session still usable.
func (s *Session) ApplyNote(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrDisposed
	}
	if s.state != StateNotePending {
		return ErrWrongState
	}

	s.pendingNote = strings.TrimSpace(raw)
	text := prepareNote(raw, s.settings)
	if text == "" || text == s.lastBurnedNote {
		s.state = StateEditorOpen
		return nil
	}

	if err := s.ensureBackupLocked(); err != nil {
		return err
	}
	if err := s.burn(s.path, text, caption.Options{Quality: s.settings.Quality}); err != nil {
		return fmt.Errorf("note burn failed: %w", err)
	}
	s.lastBurnedNote = text
	s.state = StateEditorOpen
	return nil
}

// WriteAnnotated replaces the working file with the composited editor
// output, taking the pre-mutation backup first. Only valid while the
// editor is open.
func (s *Session) WriteAnnotated(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrDisposed
	}
	if s.state != StateEditorOpen {
		return ErrWrongState
	}
	if err := s.ensureBackupLocked(); err != nil {
		return err
	}
	if err := caption.WriteImage(s.path, img, caption.Options{Quality: s.settings.Quality}); err != nil {
		return fmt.Errorf("write annotated image: %w", err)
	}
	return nil
}

// EnsureBackup copies the working file aside before its first mutating
// write. Idempotent per session.
func (s *Session) EnsureBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureBackupLocked()
}

func (s *Session) ensureBackupLocked() error {
	if s.backupCreated {
		return nil
	}
	if err := copyFile(s.path, backupPathFor(s.path)); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	s.backupCreated = true
	return nil
}

// Dispose performs the terminal disposition and ends the session. The
// caller closes any open panels first.
func (s *Session) Dispose(d Disposition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrDisposed
	}

	switch d {
	case Save:
		// File stays as-is.
	case CopySave:
		data, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("read image for clipboard: %w", err)
		}
		// The pasteboard holds one payload at a time: the reference
		// goes first so the image is what ends up resident. A failed
		// reference is not worth aborting the save over.
		if err := s.clip.WriteFileReference(s.path); err != nil {
			log.Printf("Dispose: file reference write failed: %v", err)
		}
		if err := s.clip.WriteImage(data); err != nil {
			return fmt.Errorf("clipboard image write failed: %w", err)
		}
	case CopyDelete:
		// Snapshot before deleting so the clipboard payload survives.
		data, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("read image for clipboard: %w", err)
		}
		if err := s.clip.WriteImage(data); err != nil {
			return fmt.Errorf("clipboard image write failed: %w", err)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
	case DeleteOnly:
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown disposition %d", d)
	}

	s.removeBackupLocked()
	s.state = StateDisposed
	return nil
}

// Cancel tears the session down without any disposition: the working
// file is left exactly as it is, the backup is kept for manual recovery.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	log.Printf("Session cancelled in state %s", s.state)
	s.state = StateDisposed
}

func (s *Session) removeBackupLocked() {
	if !s.backupCreated {
		return
	}
	if err := os.Remove(backupPathFor(s.path)); err != nil && !os.IsNotExist(err) {
		log.Printf("Dispose: removing backup: %v", err)
	}
	s.backupCreated = false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
