package flow

import "testing"

func confirmStep() FlowMap {
	return FlowMap{
		Title: "confirm",
		Steps: []FlowStep{
			{
				ID:       "confirm",
				Question: "Is that correct? Please say Yes or No.",
				Options: []FlowOption{
					{Label: "Yes", Keywords: []string{"yes", "yeah", "correct"}, Next: "next"},
					{Label: "No", Next: "next"},
				},
			},
			{ID: "next", Question: "Next question."},
		},
	}
}

func TestMatchUserResponseKeywords(t *testing.T) {
	label, ok := MatchUserResponse("yeah that's right", "confirm", confirmStep())
	if !ok {
		t.Fatalf("MatchUserResponse() ok=false, want match")
	}
	if label != "Yes" {
		t.Fatalf("label = %q, want %q", label, "Yes")
	}
}

func TestMatchUserResponseLabelSubstring(t *testing.T) {
	label, ok := MatchUserResponse("definitely NO thanks", "confirm", confirmStep())
	if !ok || label != "No" {
		t.Fatalf("MatchUserResponse() = (%q, %v), want (No, true)", label, ok)
	}
}

func TestMatchUserResponseFirstDeclaredWins(t *testing.T) {
	m := FlowMap{
		Title: "ambiguous",
		Steps: []FlowStep{
			{
				ID:       "q",
				Question: "Yes or correct?",
				Options: []FlowOption{
					{Label: "Yes"},
					{Label: "Correct"},
				},
			},
		},
	}
	label, ok := MatchUserResponse("yes correct", "q", m)
	if !ok || label != "Yes" {
		t.Fatalf("MatchUserResponse() = (%q, %v), want first-declared option Yes", label, ok)
	}
}

func TestMatchUserResponseSynonymsOnlyWithoutKeywords(t *testing.T) {
	m := FlowMap{
		Title: "synonyms",
		Steps: []FlowStep{
			{
				ID:       "q",
				Question: "Better or worse?",
				Options: []FlowOption{
					{Label: "Better"},
					{Label: "Worse"},
				},
			},
		},
	}
	label, ok := MatchUserResponse("I feel pretty good actually", "q", m)
	if !ok || label != "Better" {
		t.Fatalf("MatchUserResponse() = (%q, %v), want Better via synonym group", label, ok)
	}

	// An option with explicit keywords must not fall through to synonyms.
	m.Steps[0].Options[0].Keywords = []string{"improving"}
	if _, ok := MatchUserResponse("I feel pretty good actually", "q", m); ok {
		t.Fatalf("MatchUserResponse() matched, want no match when keywords exclude synonyms")
	}
}

func TestMatchUserResponseNoMatch(t *testing.T) {
	if label, ok := MatchUserResponse("purple elephants", "confirm", confirmStep()); ok {
		t.Fatalf("MatchUserResponse() = (%q, true), want no match", label)
	}
}

func TestMatchUserResponseDeterministic(t *testing.T) {
	m := confirmStep()
	first, ok1 := MatchUserResponse("yes correct", "confirm", m)
	second, ok2 := MatchUserResponse("yes correct", "confirm", m)
	if ok1 != ok2 || first != second {
		t.Fatalf("MatchUserResponse() not deterministic: (%q,%v) then (%q,%v)", first, ok1, second, ok2)
	}
}

func TestContainsFinalPhrase(t *testing.T) {
	if !ContainsFinalPhrase("Thank you, take care, goodbye!") {
		t.Fatalf("ContainsFinalPhrase(farewell) = false, want true")
	}
	if ContainsFinalPhrase("I understand your concern") {
		t.Fatalf("ContainsFinalPhrase(concern) = true, want false")
	}
	if !ContainsFinalPhrase("Cuídese mucho, adiós") {
		t.Fatalf("ContainsFinalPhrase(spanish farewell) = false, want true")
	}
}
