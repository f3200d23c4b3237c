// Package tray hosts the system tray icon and menu. systray owns the
// main thread; everything else reaches the tray through the safe
// helpers here, which no-op until the tray is ready.
package tray

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
)

// Callbacks are the menu actions, wired by main to the event loop.
type Callbacks struct {
	OnCaptureArea func()
	OnCaptureFull func()
	OnQuit        func()
}

var (
	ready atomic.Bool

	mu         sync.Mutex
	aboutExtra string
)

// Run blocks on the systray main loop. Must be called from the main
// goroutine on platforms that require it.
func Run(cb Callbacks) {
	systray.Run(func() { onReady(cb) }, func() { onExit(cb) })
}

// Quit asks the systray loop to exit.
func Quit() { systray.Quit() }

func onReady(cb Callbacks) {
	systray.SetIcon(IconPNG)
	systray.SetTitle("Snapmark")
	systray.SetTooltip("Snapmark")
	ready.Store(true)

	mArea := systray.AddMenuItem("Capture Region", "Select a screen region to capture")
	mFull := systray.AddMenuItem("Capture Full Screen", "Capture the primary display")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit Snapmark")

	go func() {
		for {
			select {
			case <-mArea.ClickedCh:
				if cb.OnCaptureArea != nil {
					cb.OnCaptureArea()
				}
			case <-mFull.ClickedCh:
				if cb.OnCaptureFull != nil {
					cb.OnCaptureFull()
				}
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func onExit(cb Callbacks) {
	ready.Store(false)
	if cb.OnQuit != nil {
		cb.OnQuit()
	}
}

// UpdateTooltip changes the tray tooltip. Safe before Run and after
// exit.
func UpdateTooltip(tt string) {
	if !ready.Load() {
		return
	}
	systray.SetTooltip(tt)
}

// SetAboutExtra records a line of runtime info (such as the resident
// TCP port) surfaced in logs and future About surfaces.
func SetAboutExtra(s string) {
	mu.Lock()
	aboutExtra = s
	mu.Unlock()
	log.Printf("tray: %s", s)
}

// AboutExtra returns the recorded runtime info line.
func AboutExtra() string {
	mu.Lock()
	defer mu.Unlock()
	return aboutExtra
}
