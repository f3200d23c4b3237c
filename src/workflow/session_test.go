package workflow

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapmark/src/caption"
	"snapmark/src/screenshot"
)

type fakeClipboard struct {
	images [][]byte
	refs   []string
	order  []string
	fail   bool
}

func (f *fakeClipboard) WriteImage(data []byte) error {
	if f.fail {
		return errors.New("clipboard unavailable")
	}
	snapshot := make([]byte, len(data))
	copy(snapshot, data)
	f.images = append(f.images, snapshot)
	f.order = append(f.order, "image")
	return nil
}

func (f *fakeClipboard) WriteFileReference(path string) error {
	if f.fail {
		return errors.New("clipboard unavailable")
	}
	f.refs = append(f.refs, path)
	f.order = append(f.order, "ref")
	return nil
}

type burnRecorder struct {
	burns []string
	fail  bool
}

func (b *burnRecorder) burn(path, text string, _ caption.Options) error {
	if b.fail {
		return errors.New("disk full")
	}
	b.burns = append(b.burns, text)
	// Simulate the in-place rewrite so file contents change per burn.
	return os.WriteFile(path, []byte("img+"+text), 0644)
}

func newTestSession(t *testing.T, settings Settings) (*Session, *fakeClipboard, *burnRecorder) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Screenshot.jpg")
	if err := os.WriteFile(path, []byte("original image bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	clip := &fakeClipboard{}
	rec := &burnRecorder{}
	s := NewSession(path, screenshot.Display{}, settings, clip)
	s.SetBurnFunc(rec.burn)
	return s, clip, rec
}

func TestSanitizeStem(t *testing.T) {
	tests := []struct {
		proposed string
		previous string
		want     string
	}{
		{"Report/Q1:Final", "Screenshot", "ReportQ1Final"},
		{`a\b*c?d"e<f>g|h`, "x", "abcdefgh"},
		{"///", "Screenshot", "Screenshot"},
		{"  spaced  ", "x", "spaced"},
		{"", "prev", "prev"},
		{"ok-name_1", "x", "ok-name_1"},
	}
	for _, tt := range tests {
		if got := sanitizeStem(tt.proposed, tt.previous); got != tt.want {
			t.Errorf("sanitizeStem(%q) = %q, want %q", tt.proposed, got, tt.want)
		}
	}
}

func TestApplyRenameScenarioB(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})

	if err := s.ApplyRename("Report/Q1:Final"); err != nil {
		t.Fatalf("ApplyRename failed: %v", err)
	}
	if got := filepath.Base(s.Path()); got != "ReportQ1Final.jpg" {
		t.Errorf("renamed to %q, want ReportQ1Final.jpg", got)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if s.State() != StateNotePending {
		t.Errorf("state = %v, want note-pending", s.State())
	}
}

func TestApplyRenameSameNameSkipsDisk(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})
	before := s.Path()
	if err := s.ApplyRename("Screenshot.jpg"); err != nil {
		t.Fatalf("ApplyRename failed: %v", err)
	}
	if s.Path() != before {
		t.Errorf("path changed to %q", s.Path())
	}
	if s.State() != StateNotePending {
		t.Errorf("state = %v, want note-pending", s.State())
	}
}

func TestApplyRenameCollisionAbortsTransition(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})
	taken := filepath.Join(filepath.Dir(s.Path()), "Taken.jpg")
	if err := os.WriteFile(taken, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.ApplyRename("Taken"); err == nil {
		t.Fatal("expected collision error")
	}
	if s.State() != StateRenamePending {
		t.Errorf("failed rename advanced state to %v", s.State())
	}
	if filepath.Base(s.Path()) != "Screenshot.jpg" {
		t.Errorf("failed rename moved the file to %q", s.Path())
	}
}

func TestApplyRenameMovesBackupAlongside(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})
	if err := s.EnsureBackup(); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyRename("Renamed"); err != nil {
		t.Fatalf("ApplyRename failed: %v", err)
	}
	if _, err := os.Stat(s.Path() + ".bak"); err != nil {
		t.Errorf("backup did not follow the rename: %v", err)
	}
}

func TestApplyNoteScenarioC(t *testing.T) {
	s, _, rec := newTestSession(t, Settings{NotePrefixEnabled: true, NotePrefix: "note: "})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("x", 1200)
	if err := s.ApplyNote(long); err != nil {
		t.Fatalf("ApplyNote failed: %v", err)
	}
	if len(rec.burns) != 1 {
		t.Fatalf("burns = %d, want 1", len(rec.burns))
	}
	want := "note: " + strings.Repeat("x", MaxNoteLen)
	if rec.burns[0] != want {
		t.Errorf("burned %d chars with prefix %q, want %d chars",
			len(rec.burns[0]), rec.burns[0][:6], len(want))
	}
	if s.State() != StateEditorOpen {
		t.Errorf("state = %v, want editor-open", s.State())
	}
}

func TestApplyNoteIdempotent(t *testing.T) {
	s, _, rec := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("same note"); err != nil {
		t.Fatal(err)
	}
	// Walk back and re-confirm the identical note.
	if err := s.BackToNote(); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("  same note  "); err != nil {
		t.Fatal(err)
	}
	if len(rec.burns) != 1 {
		t.Errorf("re-confirming the same note burned %d times, want 1", len(rec.burns))
	}
}

func TestApplyNoteEmptySkipsBurnAndBackup(t *testing.T) {
	s, _, rec := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("   "); err != nil {
		t.Fatalf("ApplyNote failed: %v", err)
	}
	if len(rec.burns) != 0 {
		t.Error("empty note was burned")
	}
	if _, err := os.Stat(s.BackupPath()); !os.IsNotExist(err) {
		t.Error("empty note created a backup")
	}
	if s.State() != StateEditorOpen {
		t.Errorf("state = %v, want editor-open", s.State())
	}
}

func TestApplyNoteBurnFailurePreservesState(t *testing.T) {
	s, _, rec := newTestSession(t, Settings{})
	rec.fail = true
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("doomed"); err == nil {
		t.Fatal("expected burn failure")
	}
	if s.State() != StateNotePending {
		t.Errorf("failed burn advanced state to %v", s.State())
	}
	// Retry works once the disk recovers.
	rec.fail = false
	if err := s.ApplyNote("doomed"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s.State() != StateEditorOpen {
		t.Errorf("state after retry = %v, want editor-open", s.State())
	}
}

func TestBackupCreatedExactlyOnce(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})
	if err := s.EnsureBackup(); err != nil {
		t.Fatal(err)
	}
	original, err := os.ReadFile(s.BackupPath())
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	// Mutate the working file, then call EnsureBackup again: the backup
	// must keep the pre-mutation bytes.
	if err := os.WriteFile(s.Path(), []byte("mutated"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureBackup(); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(s.BackupPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(original) {
		t.Error("second EnsureBackup overwrote the original backup")
	}
}

func TestBackToRenamePreservesNoteDraft(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.BackToRename("half-typed note"); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateRenamePending {
		t.Errorf("state = %v, want rename-pending", s.State())
	}
	if s.PendingNote() != "half-typed note" {
		t.Errorf("pending note = %q", s.PendingNote())
	}
}

func TestDisposeScenarioD(t *testing.T) {
	s, clip, _ := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("burn me"); err != nil {
		t.Fatal(err)
	}
	path := s.Path()
	bak := s.BackupPath()
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Dispose(CopyDelete); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if len(clip.images) != 1 || string(clip.images[0]) != string(contents) {
		t.Error("clipboard does not hold the pre-deletion image bytes")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("working file still exists after copy-delete")
	}
	if _, err := os.Stat(bak); !os.IsNotExist(err) {
		t.Error("backup still exists after copy-delete")
	}
	if s.State() != StateDisposed {
		t.Errorf("state = %v, want disposed", s.State())
	}
}

func TestDisposeSaveLeavesFileRemovesBackup(t *testing.T) {
	s, clip, _ := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("note"); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispose(Save); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("saved file missing: %v", err)
	}
	if _, err := os.Stat(s.BackupPath()); !os.IsNotExist(err) {
		t.Error("backup survived a save disposition")
	}
	if len(clip.images) != 0 {
		t.Error("plain save touched the clipboard")
	}
}

func TestDisposeCopySaveWritesImageAndReference(t *testing.T) {
	s, clip, _ := newTestSession(t, Settings{})
	if err := s.Dispose(CopySave); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if len(clip.images) != 1 {
		t.Error("copy-save did not write image data")
	}
	if len(clip.refs) != 1 || clip.refs[0] != s.Path() {
		t.Errorf("copy-save refs = %v", clip.refs)
	}
	// The pasteboard keeps only the last payload, so the image write
	// must come after the file reference.
	if len(clip.order) != 2 || clip.order[1] != "image" {
		t.Errorf("write order = %v, want the image written last", clip.order)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("copy-save deleted the file: %v", err)
	}
}

func TestDisposeClipboardFailureAbortsDeletion(t *testing.T) {
	s, clip, _ := newTestSession(t, Settings{})
	clip.fail = true
	if err := s.Dispose(CopyDelete); err == nil {
		t.Fatal("expected clipboard failure")
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Error("file was deleted despite clipboard failure")
	}
	if s.State() == StateDisposed {
		t.Error("failed disposition still terminated the session")
	}
}

func TestCancelPerformsNoDisposition(t *testing.T) {
	s, clip, _ := newTestSession(t, Settings{})
	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote("note"); err != nil {
		t.Fatal(err)
	}
	s.Cancel()
	if s.State() != StateDisposed {
		t.Errorf("state = %v, want disposed", s.State())
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("cancel removed the working file: %v", err)
	}
	if len(clip.images) != 0 {
		t.Error("cancel touched the clipboard")
	}
	// Terminal: nothing moves after cancellation.
	if err := s.ApplyNote("again"); !errors.Is(err, ErrDisposed) {
		t.Errorf("post-cancel transition returned %v, want ErrDisposed", err)
	}
}

func TestWriteAnnotatedTakesBackupFirst(t *testing.T) {
	s, _, _ := newTestSession(t, Settings{Quality: 85})

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	if err := s.WriteAnnotated(img); !errors.Is(err, ErrWrongState) {
		t.Fatalf("WriteAnnotated before editor: err = %v, want ErrWrongState", err)
	}

	if err := s.ApplyRename(""); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyNote(""); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAnnotated(img); err != nil {
		t.Fatalf("WriteAnnotated: %v", err)
	}

	bak, err := os.ReadFile(s.BackupPath())
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "original image bytes" {
		t.Fatalf("backup = %q, want pre-edit content", bak)
	}
	cur, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(cur) == "original image bytes" {
		t.Fatal("working file was not replaced")
	}
}

func TestDispositionMapping(t *testing.T) {
	terminal := map[Command]Disposition{
		CmdSave:       Save,
		CmdCopySave:   CopySave,
		CmdCopyDelete: CopyDelete,
		CmdDelete:     DeleteOnly,
	}
	for cmd, want := range terminal {
		got, ok := cmd.Disposition()
		if !ok || got != want {
			t.Errorf("%v.Disposition() = (%v,%v), want (%v,true)", cmd, got, ok, want)
		}
	}
	for _, cmd := range []Command{CmdAdvance, CmdBack} {
		if _, ok := cmd.Disposition(); ok {
			t.Errorf("%v should not map to a disposition", cmd)
		}
	}
}
