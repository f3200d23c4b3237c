// Package control is the loopback TCP command channel of the resident
// process. It doubles as the single-instance claim: only one process can
// bind the start port, and later invocations delegate commands to it.
//
// Protocol: one newline-terminated verb per connection (PING, CANCEL,
// FULL), answered with PONG, OK or "ERR <msg>".
package control

import (
	"context"
	"os"
	"strconv"
)

// Verb is a control-channel command.
type Verb string

const (
	// VerbCancel cancels the active capture session, if any.
	VerbCancel Verb = "CANCEL"
	// VerbFull triggers a full-display capture.
	VerbFull Verb = "FULL"
)

// Server owns the TCP endpoint and surfaces commands to the event loop.
type Server interface {
	// Start binds the first port of the configured range. Failure
	// means another resident instance already owns the channel.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next received command, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close stops accepting commands and releases the claim.
	Close() error
}

// Conn is one received command awaiting its response.
type Conn interface {
	Verb() Verb
	RespondOK() error
	RespondError(msg string) error
	Close() error
}

// Client delivers a command to a resident instance, if one exists.
type Client interface {
	// Send scans the port range for a resident and delivers verb.
	// delivered is false when no resident was found.
	Send(ctx context.Context, verb Verb) (delivered bool, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTCPServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTCPClient() }

const (
	defaultPortStart = 49600
	defaultPortEnd   = 49650
)

// getPortRange returns the configured TCP port range. Overridable via
// SNAPMARK_PORT_START and SNAPMARK_PORT_END, clamped to [1024, 65535].
func getPortRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("SNAPMARK_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("SNAPMARK_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

// PortRange exposes the effective range for logging and pre-flight
// checks.
func PortRange() (int, int) { return getPortRange() }
