//go:build windows

package notification

import (
	"log"

	"golang.org/x/sys/windows"
)

func showTransient(text string) {
	// Non-blocking: the message box runs on its own goroutine and
	// dismisses itself with the user.
	go func() {
		title, _ := windows.UTF16PtrFromString("Snapmark")
		body, err := windows.UTF16PtrFromString(text)
		if err != nil {
			log.Printf("notification: %v", err)
			return
		}
		_, _ = windows.MessageBox(0, body, title, windows.MB_OK|windows.MB_ICONINFORMATION|windows.MB_SETFOREGROUND)
	}()
}

func showBlocking(title, message string) {
	t, _ := windows.UTF16PtrFromString(title)
	b, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return
	}
	_, _ = windows.MessageBox(0, b, t, windows.MB_OK|windows.MB_ICONERROR|windows.MB_SETFOREGROUND)
}
