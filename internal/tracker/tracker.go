// Package tracker follows a live call's position in its flow map. It
// consumes finalized transcript turns, re-anchors on each assistant
// utterance, and resolves user replies to flow transitions.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/nlu"
)

// StepRecord captures the outcome of a user reply at one flow step.
// Revisiting a step overwrites its record; the latest answer wins.
type StepRecord struct {
	StepID           string    `json:"step_id"`
	StepLabel        string    `json:"step_label"`
	Utterance        string    `json:"utterance"`
	MatchedLabel     string    `json:"matched_label,omitempty"`
	NextStepID       string    `json:"next_step_id,omitempty"`
	Matched          bool      `json:"matched"`
	Source           string    `json:"source,omitempty"`
	TriggersCallback bool      `json:"triggers_callback"`
	At               time.Time `json:"at"`
}

// Progress is a point-in-time view of the flow position.
type Progress struct {
	FlowTitle     string       `json:"flow_title"`
	CurrentStepID string       `json:"current_step_id"`
	TotalSteps    int          `json:"total_steps"`
	VisitedSteps  int          `json:"visited_steps"`
	Completed     bool         `json:"completed"`
	Records       []StepRecord `json:"records"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	flowMap flow.FlowMap
	matcher nlu.Matcher

	mu        sync.Mutex
	current   string
	history   []flow.TranscriptTurn
	records   map[string]StepRecord
	visitSeq  []string
	completed bool
}

func New(m flow.FlowMap, matcher nlu.Matcher) *Tracker {
	if matcher == nil {
		matcher = nlu.Local{}
	}
	first, _ := m.FirstStepID()
	return &Tracker{
		flowMap: m,
		matcher: matcher,
		current: first,
		records: make(map[string]StepRecord),
	}
}

// ObserveAssistant re-anchors the tracker on the step the assistant is
// actually speaking. The assistant drives the script, so its utterance
// beats any position the tracker advanced to on its own.
func (t *Tracker) ObserveAssistant(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, flow.TranscriptTurn{Role: "assistant", Text: text})
	if id, ok := flow.InferFlowStep(t.history, t.flowMap); ok {
		t.setCurrentLocked(id)
	}
}

// ObserveUser resolves the caller's reply at the current step and, on a
// match, advances the flow. The returned record is also retained for
// the progress snapshot.
func (t *Tracker) ObserveUser(ctx context.Context, text string) (StepRecord, bool) {
	t.mu.Lock()
	stepID := t.current
	t.history = append(t.history, flow.TranscriptTurn{Role: "user", Text: text})
	t.mu.Unlock()

	step, ok := t.flowMap.Step(stepID)
	if !ok {
		return StepRecord{}, false
	}

	match, err := t.matcher.Match(ctx, text, stepID, t.flowMap)
	if err != nil {
		match = nlu.Match{}
	}

	record := StepRecord{
		StepID:       stepID,
		StepLabel:    step.Label,
		Utterance:    text,
		MatchedLabel: match.Label,
		NextStepID:   match.NextStepID,
		Matched:      match.Matched,
		Source:       match.Source,
		At:           time.Now().UTC(),
	}
	if match.Matched {
		for _, opt := range step.Options {
			if opt.Label == match.Label {
				record.TriggersCallback = opt.TriggersCallback
				break
			}
		}
	}

	t.mu.Lock()
	if _, seen := t.records[stepID]; !seen {
		t.visitSeq = append(t.visitSeq, stepID)
	}
	t.records[stepID] = record
	if match.Matched {
		if match.NextStepID == flow.NextEndCall || match.NextStepID == "" {
			t.completed = true
		} else {
			t.setCurrentLocked(match.NextStepID)
		}
	}
	t.mu.Unlock()

	return record, match.Matched
}

// Progress returns the current snapshot. Records come back in first
// visit order.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]StepRecord, 0, len(t.visitSeq))
	for _, id := range t.visitSeq {
		records = append(records, t.records[id])
	}
	return Progress{
		FlowTitle:     t.flowMap.Title,
		CurrentStepID: t.current,
		TotalSteps:    len(t.flowMap.Steps),
		VisitedSteps:  len(t.visitSeq),
		Completed:     t.completed,
		Records:       records,
	}
}

// CurrentStep returns the step the tracker believes the call is at.
func (t *Tracker) CurrentStep() (flow.FlowStep, bool) {
	t.mu.Lock()
	id := t.current
	t.mu.Unlock()
	return t.flowMap.Step(id)
}

func (t *Tracker) setCurrentLocked(id string) {
	step, ok := t.flowMap.Step(id)
	if !ok {
		return
	}
	// Statement steps have no answer to wait for: advance straight to
	// their next step, chaining through consecutive statements. A
	// terminal statement means the script has run to its end; the
	// position stays on it. The hop bound guards against a cyclic map.
	for hops := 0; hops <= len(t.flowMap.Steps); hops++ {
		t.current = id
		if step.Kind() != flow.StepStatement {
			return
		}
		next := ""
		if len(step.Options) > 0 {
			next = step.Options[0].Next
		}
		if next == flow.NextEndCall || next == "" {
			t.completed = true
			return
		}
		nextStep, ok := t.flowMap.Step(next)
		if !ok {
			return
		}
		id, step = next, nextStep
	}
}
