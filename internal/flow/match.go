package flow

import "strings"

// Canonical synonym groups consulted only when an option carries no
// keywords of its own. Keyed by the lowercased option label.
var synonymGroups = map[string][]string{
	"yes":      {"yes", "yeah", "yep", "yup", "correct", "right", "sure", "of course", "si", "sí", "claro"},
	"no":       {"no", "nope", "nah", "not really", "incorrect", "wrong"},
	"better":   {"better", "improving", "improved", "good", "great", "fine", "well", "mejor", "bien"},
	"worse":    {"worse", "worsening", "bad", "terrible", "awful", "peor", "mal"},
	"same":     {"same", "unchanged", "no change", "igual"},
	"ok":       {"ok", "okay", "alright", "all right", "fine"},
	"maybe":    {"maybe", "perhaps", "possibly", "not sure", "quizas", "quizás", "tal vez"},
	"goodbye":  {"goodbye", "bye", "take care", "adios", "adiós"},
	"repeat":   {"repeat", "again", "say that again", "pardon", "what was that", "repite"},
	"help":     {"help", "assistance", "ayuda"},
	"pain":     {"pain", "hurts", "hurting", "sore", "ache", "dolor", "duele"},
	"callback": {"call back", "callback", "call me", "someone call"},
}

// MatchUserResponse resolves a free-form utterance against the options of
// the step identified by stepID. Options are tested in declaration order
// and the first match wins; that ordering is a tie-break contract, not
// incidental. Returns ok=false when nothing matches, which callers must
// treat as "no transition", not an error.
func MatchUserResponse(utterance, stepID string, m FlowMap) (string, bool) {
	step, ok := m.Step(stepID)
	if !ok {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return "", false
	}

	for _, opt := range step.Options {
		if matchesOption(normalized, opt) {
			return opt.Label, true
		}
	}
	return "", false
}

func matchesOption(normalized string, opt FlowOption) bool {
	label := strings.ToLower(strings.TrimSpace(opt.Label))
	if label != "" && strings.Contains(normalized, label) {
		return true
	}
	if len(opt.Keywords) > 0 {
		for _, kw := range opt.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(normalized, kw) {
				return true
			}
		}
		// Options with explicit keywords opt out of the synonym table.
		return false
	}
	for _, syn := range synonymGroups[label] {
		if strings.Contains(normalized, syn) {
			return true
		}
	}
	return false
}

// Closing phrases that mark the assistant's farewell. Matching one is a
// trigger to arm the goodbye sequence, never the hangup mechanism itself:
// the engine still waits for response completion plus playback.
var finalPhrases = []string{
	"goodbye",
	"good bye",
	"bye for now",
	"take care",
	"have a great day",
	"have a good day",
	"adiós",
	"adios",
	"hasta luego",
	"cuídese",
	"cuidese",
	"que tenga un buen día",
	"que tenga un buen dia",
}

// ContainsFinalPhrase reports whether text contains one of the fixed
// multilingual closing phrases.
func ContainsFinalPhrase(text string) bool {
	normalized := strings.ToLower(text)
	for _, phrase := range finalPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
