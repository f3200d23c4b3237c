package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("QUALITY", "70")
	os.Setenv("MAX_WIDTH", "1600")
	os.Setenv("NOTE_PREFIX_ENABLED", "true")
	os.Setenv("NOTE_PREFIX", "note: ")
	os.Setenv("HOTKEY", "Ctrl+Shift+4")
	os.Setenv("SAVE_DIR", "/tmp/caps")

	defer func() {
		os.Unsetenv("QUALITY")
		os.Unsetenv("MAX_WIDTH")
		os.Unsetenv("NOTE_PREFIX_ENABLED")
		os.Unsetenv("NOTE_PREFIX")
		os.Unsetenv("HOTKEY")
		os.Unsetenv("SAVE_DIR")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Quality != 70 {
		t.Errorf("Expected Quality 70, got %d", cfg.Quality)
	}
	if cfg.MaxWidth != 1600 {
		t.Errorf("Expected MaxWidth 1600, got %d", cfg.MaxWidth)
	}
	if !cfg.NotePrefixEnabled {
		t.Error("Expected NotePrefixEnabled to be true")
	}
	if cfg.NotePrefix != "note: " {
		t.Errorf("Expected NotePrefix 'note: ', got %q", cfg.NotePrefix)
	}
	if cfg.Hotkey != "Ctrl+Shift+4" {
		t.Errorf("Expected Hotkey 'Ctrl+Shift+4', got %q", cfg.Hotkey)
	}
	if cfg.SaveDir != "/tmp/caps" {
		t.Errorf("Expected SaveDir '/tmp/caps', got %q", cfg.SaveDir)
	}
}

func TestLoadClampsQuality(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"5", 10},
		{"150", 100},
		{"", DefaultQuality},
		{"garbage", DefaultQuality},
	}
	for _, tt := range tests {
		if tt.env == "" {
			os.Unsetenv("QUALITY")
		} else {
			os.Setenv("QUALITY", tt.env)
		}
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Quality != tt.want {
			t.Errorf("QUALITY=%q: got %d, want %d", tt.env, cfg.Quality, tt.want)
		}
	}
	os.Unsetenv("QUALITY")
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"QUALITY", "MAX_WIDTH", "NOTE_PREFIX_ENABLED", "HOTKEY", "COUNTER"} {
		os.Unsetenv(key)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hotkey != DefaultHotkey {
		t.Errorf("default Hotkey = %q, want %q", cfg.Hotkey, DefaultHotkey)
	}
	if cfg.MaxWidth != 0 {
		t.Errorf("default MaxWidth = %d, want 0", cfg.MaxWidth)
	}
	if cfg.Counter != 1 {
		t.Errorf("default Counter = %d, want 1", cfg.Counter)
	}
	if cfg.NotePrefixEnabled {
		t.Error("default NotePrefixEnabled should be false")
	}
}
