// Package summary produces the post-call artifacts: the callback flag
// with its reasons, and the end-of-call summary for the care team.
package summary

import (
	"strings"
	"sync"
)

// Assistant phrases that commit the care team to calling back. Matching
// is substring over the lowercased utterance.
var callbackPhrases = []string{
	"have someone call you",
	"someone will call you",
	"call you back",
	"nurse will call",
	"team will reach out",
	"we will reach out",
	"we'll call you",
	"schedule a call",
	"le devolveremos la llamada",
	"le llamaremos",
	"alguien le llamara",
	"alguien le llamará",
}

// CallbackDetector accumulates callback intent over a call. The flag is
// sticky: once a callback is promised or triggered it stays set, and
// reasons are de-duplicated.
type CallbackDetector struct {
	mu        sync.Mutex
	requested bool
	reasons   []string
	seen      map[string]bool
}

func NewCallbackDetector() *CallbackDetector {
	return &CallbackDetector{seen: make(map[string]bool)}
}

// ObserveAssistant checks one assistant utterance for a callback
// promise. Returns true when this utterance set or re-confirmed the
// flag.
func (d *CallbackDetector) ObserveAssistant(text string) bool {
	normalized := strings.ToLower(text)
	for _, phrase := range callbackPhrases {
		if strings.Contains(normalized, phrase) {
			d.Note("assistant promised a callback")
			return true
		}
	}
	return false
}

// Note records a callback reason, setting the sticky flag.
func (d *CallbackDetector) Note(reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requested = true
	if d.seen[reason] {
		return
	}
	d.seen[reason] = true
	d.reasons = append(d.reasons, reason)
}

func (d *CallbackDetector) Requested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requested
}

// Reasons returns the recorded reasons in first-seen order.
func (d *CallbackDetector) Reasons() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.reasons))
	copy(out, d.reasons)
	return out
}
