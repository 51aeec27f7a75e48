// Package policy holds the guardrails applied to patient speech before
// it leaves the process: PII redaction ahead of any model call, and the
// keyword escalation floor.
package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	// Insurance member IDs and medical record numbers as read out over the
	// phone: a letter-or-digit run of 8+ with at least one digit group.
	recordPattern = regexp.MustCompile(`\b(?i:(?:mrn|member|policy|record)\s*(?:number|id|#)?[:\s]+)[A-Za-z0-9\-]{6,}\b`)
	dobPattern    = regexp.MustCompile(`\b(?:\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})\b`)
)

// RedactPII masks contact details, record identifiers, and dates of
// birth in one utterance. Names are left alone: the patient's name is
// part of the call contract and scrubbing it destroys the transcript.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Record IDs go before phone; a spoken member number is long enough
	// to pass for a phone number.
	next = recordPattern.ReplaceAllString(out, "[REDACTED_RECORD_ID]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	next = dobPattern.ReplaceAllString(out, "[REDACTED_DATE]")
	changed = changed || next != out
	out = next

	return out, changed
}
