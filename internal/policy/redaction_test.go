package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at maria@example.com or call +1 (555) 123-9876, my MRN: 84412-AC, born 03/14/1958."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_RECORD_ID]", "[REDACTED_DATE]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIKeepsPlainSpeech(t *testing.T) {
	input := "I have been feeling better and I take the pills every morning."
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII(%q) = %q changed=%v, want unchanged", input, out, changed)
	}
}
