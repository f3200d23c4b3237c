// Package notification surfaces short status messages outside the
// panel flow: disposition results and fatal startup errors.
package notification

import "log"

// Notify shows a transient, non-blocking status message.
func Notify(text string) {
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	showTransient(text)
}

// ShowBlockingError shows a modal error and returns when dismissed.
// Used for startup failures that make the app unusable.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
	showBlocking(title, message)
}
