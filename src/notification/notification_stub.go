//go:build !windows

package notification

import "log"

func showTransient(text string) {
	log.Printf("Snapmark: %s", text)
}

func showBlocking(title, message string) {}
