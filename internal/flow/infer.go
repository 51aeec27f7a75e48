package flow

import "strings"

const (
	// inferScanWords limits scoring to the leading words of a step's
	// question text; spoken questions front-load their identifying words.
	inferScanWords = 5
	// inferMinWordLen skips short filler words ("the", "how", "are").
	inferMinWordLen = 3
	// inferMinWordHits is the qualification cutoff. Tunable: the heuristic
	// is fragile against heavy paraphrase and this threshold trades missed
	// transitions against false ones.
	inferMinWordHits = 2
)

// InferFlowStep locates the step the conversation has reached, given the
// transcript so far. With no assistant turn yet, the flow is at its first
// step. Otherwise each step is scored by how many of the leading long
// words of its question appear in the most recent assistant utterance,
// with topic-keyword fallbacks when no step qualifies.
func InferFlowStep(history []TranscriptTurn, m FlowMap) (string, bool) {
	lastAssistant := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			lastAssistant = history[i].Text
			break
		}
	}
	if strings.TrimSpace(lastAssistant) == "" {
		return m.FirstStepID()
	}

	normalized := strings.ToLower(lastAssistant)

	bestID := ""
	bestHits := 0
	for _, step := range m.Steps {
		hits := questionWordHits(normalized, step.Question)
		if hits > bestHits {
			bestHits = hits
			bestID = step.ID
		}
	}
	if bestHits >= inferMinWordHits {
		return bestID, true
	}

	return topicFallback(normalized, m)
}

func questionWordHits(assistantUtterance, question string) int {
	words := strings.Fields(strings.ToLower(question))
	scanned := 0
	hits := 0
	for _, w := range words {
		if scanned >= inferScanWords {
			break
		}
		scanned++
		w = strings.Trim(w, ".,!?¿¡:;\"'")
		if len(w) <= inferMinWordLen {
			continue
		}
		if strings.Contains(assistantUtterance, w) {
			hits++
		}
	}
	return hits
}

// topicFallback maps coarse topic cues onto well-known step shapes when
// word overlap fails entirely.
func topicFallback(normalized string, m FlowMap) (string, bool) {
	if containsAny(normalized, "goodbye", "take care", "adiós", "adios", "cuídese") || hasWord(normalized, "bye") {
		if id, ok := lastTerminalStep(m); ok {
			return id, true
		}
	}
	if containsAny(normalized, "feeling", "feel", "concern", "how are you", "cómo se siente", "como se siente") {
		if id, ok := generalStatusStep(m); ok {
			return id, true
		}
	}
	if containsAny(normalized, "medication", "medicine", "prescription", "medicamento") {
		if id, ok := stepMentioning(m, "medication", "medicamento"); ok {
			return id, true
		}
	}
	return "", false
}

// generalStatusStep is the step asking about the patient's overall state:
// the first step whose question mentions feeling/concern, else the first
// question step.
func generalStatusStep(m FlowMap) (string, bool) {
	if id, ok := stepMentioning(m, "feeling", "feel", "concern"); ok {
		return id, true
	}
	for _, s := range m.Steps {
		if s.Kind() == StepQuestion {
			return s.ID, true
		}
	}
	return "", false
}

// lastTerminalStep is the last step with no onward branches, treated as
// the flow's farewell.
func lastTerminalStep(m FlowMap) (string, bool) {
	for i := len(m.Steps) - 1; i >= 0; i-- {
		terminal := true
		for _, opt := range m.Steps[i].Options {
			if !isTerminalNext(opt.Next) {
				terminal = false
				break
			}
		}
		if terminal {
			return m.Steps[i].ID, true
		}
	}
	return "", false
}

func stepMentioning(m FlowMap, needles ...string) (string, bool) {
	for _, s := range m.Steps {
		q := strings.ToLower(s.Question)
		for _, n := range needles {
			if strings.Contains(q, n) {
				return s.ID, true
			}
		}
	}
	return "", false
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if strings.Trim(f, ".,!?¿¡:;\"'") == word {
			return true
		}
	}
	return false
}
