package panels

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"snapmark/src/annotate"
	"snapmark/src/screenshot"
	"snapmark/src/workflow"
)

func writeTempShot(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.jpg")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testEngine() *annotate.Engine {
	return annotate.New(image.NewRGBA(image.Rect(0, 0, 120, 90)))
}

func TestResumeEditorReturnsStashedEngine(t *testing.T) {
	s := &Set{}
	path := writeTempShot(t, "original")
	sess := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)
	eng := testEngine()

	s.rememberEditor(sess, eng, true)
	got, flattened := s.resumeEditor(sess)
	if got != eng {
		t.Fatalf("resumed engine = %p, want the stashed %p", got, eng)
	}
	if !flattened {
		t.Error("flattened = false, want true")
	}
}

func TestResumeEditorRejectsOtherSession(t *testing.T) {
	s := &Set{}
	path := writeTempShot(t, "original")
	sess := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)
	other := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)

	s.rememberEditor(sess, testEngine(), false)
	if got, _ := s.resumeEditor(other); got != nil {
		t.Fatal("engine stashed for one session resumed for another")
	}
}

func TestResumeEditorRejectsChangedFile(t *testing.T) {
	s := &Set{}
	path := writeTempShot(t, "original")
	sess := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)

	s.rememberEditor(sess, testEngine(), false)
	if err := os.WriteFile(path, []byte("rewritten with a note"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.resumeEditor(sess); got != nil {
		t.Fatal("stale engine resumed after the file changed underneath")
	}
}

func TestResumeEditorRejectsMissingFile(t *testing.T) {
	s := &Set{}
	path := writeTempShot(t, "original")
	sess := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)

	s.rememberEditor(sess, testEngine(), false)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.resumeEditor(sess); got != nil {
		t.Fatal("engine resumed for a deleted file")
	}
}

func TestCloseAllDropsStashedEditor(t *testing.T) {
	s := &Set{}
	path := writeTempShot(t, "original")
	sess := workflow.NewSession(path, screenshot.Display{}, workflow.Settings{}, nil)

	s.rememberEditor(sess, testEngine(), false)
	s.CloseAll()
	if got, _ := s.resumeEditor(sess); got != nil {
		t.Fatal("stashed editor survived CloseAll")
	}
}
