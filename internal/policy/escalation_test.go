package policy

import "testing"

func TestAssessUtteranceUrgent(t *testing.T) {
	cases := []string{
		"I have chest pain since this morning",
		"I can't breathe when I lie down",
		"my wound is bleeding and it won't stop",
		"no puedo respirar bien",
	}
	for _, utterance := range cases {
		d := AssessUtterance(utterance)
		if !d.Urgent || !d.RequestCallback {
			t.Fatalf("AssessUtterance(%q) = %+v, want urgent with callback", utterance, d)
		}
	}
}

func TestAssessUtteranceElevatedRequestsCallback(t *testing.T) {
	d := AssessUtterance("I had a fever last night but it went down")
	if d.Severity != "elevated" || !d.RequestCallback || d.Urgent {
		t.Fatalf("decision = %+v, want elevated with callback", d)
	}
}

func TestAssessUtteranceMonitorDoesNotEscalate(t *testing.T) {
	d := AssessUtterance("a bit of pain when I walk, nothing new")
	if d.Severity != "monitor" || d.RequestCallback {
		t.Fatalf("decision = %+v, want monitor without callback", d)
	}
}

func TestAssessUtteranceWholeWordsOnly(t *testing.T) {
	// "painting" must not trip the "pain" keyword.
	d := AssessUtterance("I went back to painting this week")
	if d.Severity != "none" {
		t.Fatalf("decision = %+v, want none for substring hit", d)
	}
}

func TestAssessUtteranceEmpty(t *testing.T) {
	if d := AssessUtterance("   "); d.Severity != "none" || d.RequestCallback {
		t.Fatalf("decision = %+v, want none", d)
	}
}
