package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// EnvPathVar points at an alternate .env when none sits beside the
	// executable.
	EnvPathVar = "SNAPMARK_ENV"

	DefaultQuality = 85
	DefaultHotkey  = "Ctrl+Alt+S"
)

type Config struct {
	Quality           int
	MaxWidth          int
	NotePrefixEnabled bool
	NotePrefix        string
	Counter           int
	Hotkey            string
	FullHotkey        string
	SaveDir           string
	DisplayScale      float64
	EnableFileLogging bool
}

// Load reads configuration from sources in priority order:
// 1) .env in the application (executable) directory
// 2) If not found, the SNAPMARK_ENV env var as a path to a config file
// Environment variables always win over .env contents.
func Load() (*Config, error) {
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		Quality:           clampInt(getEnvInt("QUALITY", DefaultQuality), 10, 100),
		MaxWidth:          maxInt(0, getEnvInt("MAX_WIDTH", 0)),
		NotePrefixEnabled: strings.ToLower(os.Getenv("NOTE_PREFIX_ENABLED")) == "true",
		NotePrefix:        os.Getenv("NOTE_PREFIX"),
		Counter:           maxInt(1, getEnvInt("COUNTER", 1)),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		FullHotkey:        os.Getenv("FULL_HOTKEY"),
		SaveDir:           resolveSaveDir(),
		DisplayScale:      getEnvFloat("DISPLAY_SCALE", 1),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
	}
	if cfg.DisplayScale <= 0 {
		cfg.DisplayScale = 1
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveSaveDir() string {
	if dir := os.Getenv("SAVE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Pictures", "snapmark")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
