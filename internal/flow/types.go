package flow

import (
	"fmt"
	"strings"
)

// StepType distinguishes steps that wait for a patient reply from steps
// that are spoken and advanced immediately.
type StepType string

const (
	StepQuestion  StepType = "question"
	StepStatement StepType = "statement"
)

// Terminal sentinels accepted in FlowOption.Next. Anything else must
// resolve to an existing step id.
const (
	NextEndCall = "end_call"
)

// FlowOption is one branch out of a question step.
type FlowOption struct {
	Label            string   `json:"label"`
	Keywords         []string `json:"keywords,omitempty"`
	Next             string   `json:"next,omitempty"`
	TriggersCallback bool     `json:"triggers_callback,omitempty"`
}

// FlowStep is one node of the interview script graph.
type FlowStep struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Type     StepType     `json:"type,omitempty"`
	Info     string       `json:"info,omitempty"`
	Question string       `json:"question"`
	Options  []FlowOption `json:"options,omitempty"`
}

// FlowMap is the directed graph of interview steps for one call. It is
// built once per call and treated as immutable for the call's duration.
type FlowMap struct {
	Title string     `json:"title"`
	Steps []FlowStep `json:"steps"`
}

// Kind normalizes the step type; unset defaults to question.
func (s FlowStep) Kind() StepType {
	if s.Type == StepStatement {
		return StepStatement
	}
	return StepQuestion
}

// Step returns the step with the given id.
func (m FlowMap) Step(id string) (FlowStep, bool) {
	for _, s := range m.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return FlowStep{}, false
}

// FirstStepID returns the flow entry point.
func (m FlowMap) FirstStepID() (string, bool) {
	if len(m.Steps) == 0 {
		return "", false
	}
	return m.Steps[0].ID, true
}

func isTerminalNext(next string) bool {
	switch strings.TrimSpace(next) {
	case "", NextEndCall:
		return true
	default:
		return false
	}
}

// Validate enforces graph integrity at construction time: step ids are
// unique and non-empty, and every non-terminal option target resolves to
// an existing step. The engine never repairs dangling references, so a
// map that fails here must not reach a call.
func Validate(m FlowMap) error {
	if len(m.Steps) == 0 {
		return fmt.Errorf("flow %q has no steps", m.Title)
	}
	seen := make(map[string]struct{}, len(m.Steps))
	for _, s := range m.Steps {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("flow %q has a step with an empty id", m.Title)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("flow %q has duplicate step id %q", m.Title, id)
		}
		seen[id] = struct{}{}
	}
	for _, s := range m.Steps {
		for _, opt := range s.Options {
			if isTerminalNext(opt.Next) {
				continue
			}
			if _, ok := seen[opt.Next]; !ok {
				return fmt.Errorf("flow %q: step %q option %q points at unknown step %q",
					m.Title, s.ID, opt.Label, opt.Next)
			}
		}
	}
	return nil
}

// TranscriptTurn is the minimal transcript view the matching functions
// need. Callers map their own transcript types onto it.
type TranscriptTurn struct {
	Role string
	Text string
}
