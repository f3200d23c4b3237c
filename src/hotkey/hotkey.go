// Package hotkey registers global key combinations through gohook and
// reports activations via callback. The callback must only post an event
// into the loop; the workflow itself runs on the event-loop goroutine.
package hotkey

import (
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

type comboState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Listen registers combo (e.g. "Ctrl+Alt+S") and fires callback each
// time every key of the combination is held at once. Empty or unmappable
// combos log and register nothing.
func Listen(combo string, callback func()) {
	keys := parseHotkey(combo)

	var states []comboState
	for _, name := range keys {
		raw := keyNameToRawcodes(name)
		if len(raw) == 0 {
			log.Printf("hotkey: cannot map key %q, combination %q may not work", name, combo)
			continue
		}
		states = append(states, comboState{name: name, rawcodes: raw})
	}
	if len(states) == 0 {
		log.Printf("hotkey: no valid keys in %q", combo)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: panic in listener goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("hotkey: gohook.Start returned nil channel")
			return
		}
		log.Printf("hotkey: listening for %q", combo)

		var mu sync.Mutex
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				mu.Lock()
				mark(states, ev.Rawcode, true)
				if allPressed(states) {
					for i := range states {
						states[i].pressed = false
					}
					mu.Unlock()
					log.Printf("hotkey: %q activated", combo)
					if callback != nil {
						callback()
					}
					continue
				}
				mu.Unlock()
			case gohook.KeyUp:
				mu.Lock()
				mark(states, ev.Rawcode, false)
				mu.Unlock()
			}
		}
		log.Printf("hotkey: event channel closed")
	}()
}

func mark(states []comboState, rawcode uint16, pressed bool) {
	for i := range states {
		for _, rc := range states[i].rawcodes {
			if rc == rawcode {
				states[i].pressed = pressed
				return
			}
		}
	}
}

func allPressed(states []comboState) bool {
	for i := range states {
		if !states[i].pressed {
			return false
		}
	}
	return true
}

// parseHotkey normalizes "Ctrl+Alt+s" into lower-case key names.
func parseHotkey(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// keyNameToRawcodes maps a key name to its virtual key rawcodes,
// including both left and right variants for modifiers.
func keyNameToRawcodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "cmd":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	}

	if len(name) == 1 {
		c := name[0]
		if c >= 'a' && c <= 'z' {
			return []uint16{uint16(c - 'a' + 'A')} // VK 0x41-0x5A
		}
		if c >= '0' && c <= '9' {
			return []uint16{uint16(c)} // VK 0x30-0x39
		}
	}

	// Function keys F1-F12: VK 0x70-0x7B.
	if strings.HasPrefix(name, "f") && len(name) <= 3 {
		n := 0
		for _, r := range name[1:] {
			if r < '0' || r > '9' {
				return nil
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 12 {
			return []uint16{uint16(111 + n)}
		}
	}

	switch name {
	case "space":
		return []uint16{32}
	case "enter", "return":
		return []uint16{13}
	case "esc", "escape":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	case "printscreen", "prtsc":
		return []uint16{44}
	}

	return nil
}
