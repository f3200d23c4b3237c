package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	in := []string{"snapmark-burn", "-file", "a.png", "-text=hi", "--json", "-v"}
	want := []string{"snapmark-burn", "--file", "a.png", "--text=hi", "--json", "-v"}
	got := normalizeLegacyArgs(in)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRootCmdRequiresFileAndText(t *testing.T) {
	opts := &burnOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs([]string{"--text", "hi"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --file")
	}
}

func TestBurnEndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")

	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	err = runWithArgs([]string{"snapmark-burn", "-file", in, "-text", "status: reviewed", "-out", out})
	if err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}

	g, err := os.Open(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer g.Close()
	img, err := png.Decode(g)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Fatalf("output width = %d, want 400", img.Bounds().Dx())
	}
	if img.Bounds().Dy() <= 200 {
		t.Fatalf("output height = %d, want taller than input", img.Bounds().Dy())
	}
}
