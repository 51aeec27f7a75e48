package policy

import (
	"regexp"
	"strings"
)

// EscalationDecision classifies one patient utterance by clinical
// urgency. Urgent findings always request a callback; the call itself is
// never interrupted, a scripted follow-up is not an emergency line.
type EscalationDecision struct {
	Severity        string
	RequestCallback bool
	Urgent          bool
	Reason          string
}

var (
	urgentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bchest\s+pain\b`),
		regexp.MustCompile(`(?i)\b(can'?t|cannot|trouble|hard\s+to)\s+breathe?\b`),
		regexp.MustCompile(`(?i)\b(bleeding|blood)\b.*\b(won'?t|not)\s+stop`),
		regexp.MustCompile(`(?i)\b(passed\s+out|fainted|unconscious)\b`),
		regexp.MustCompile(`(?i)\bdolor\s+(de\s+)?pecho\b`),
		regexp.MustCompile(`(?i)\bno\s+puedo\s+respirar\b`),
	}
	elevatedKeywords = []string{
		"fever", "infection", "swelling", "dizzy", "dizziness", "vomiting",
		"fell", "fall", "confused", "numb",
		"fiebre", "mareado", "mareada", "hinchazón", "vomito",
	}
	monitorKeywords = []string{
		"pain", "tired", "weak", "nausea", "headache", "worse",
		"dolor", "cansado", "cansada", "peor",
	}
)

// AssessUtterance grades a patient utterance. Keyword matching only;
// this floor must keep working when the model path is down.
func AssessUtterance(utterance string) EscalationDecision {
	in := strings.ToLower(strings.TrimSpace(utterance))
	if in == "" {
		return EscalationDecision{Severity: "none"}
	}

	for _, re := range urgentPatterns {
		if re.MatchString(in) {
			return EscalationDecision{
				Severity:        "urgent",
				RequestCallback: true,
				Urgent:          true,
				Reason:          "patient described symptoms needing urgent clinical review",
			}
		}
	}

	for _, kw := range elevatedKeywords {
		if containsWord(in, kw) {
			return EscalationDecision{
				Severity:        "elevated",
				RequestCallback: true,
				Reason:          "patient mentioned " + kw,
			}
		}
	}

	for _, kw := range monitorKeywords {
		if containsWord(in, kw) {
			return EscalationDecision{
				Severity: "monitor",
				Reason:   "patient mentioned " + kw,
			}
		}
	}

	return EscalationDecision{Severity: "none"}
}

func containsWord(s, word string) bool {
	idx := strings.Index(s, word)
	for idx >= 0 {
		leftOK := idx == 0 || !isWordChar(s[idx-1])
		end := idx + len(word)
		rightOK := end == len(s) || !isWordChar(s[end])
		if leftOK && rightOK {
			return true
		}
		next := strings.Index(s[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z'
}
