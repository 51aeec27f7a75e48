// Package nlu resolves a caller utterance against the current flow
// step's options. The local matcher is deterministic keyword matching;
// the remote matcher asks a chat model and degrades to no-match on any
// provider failure, never failing the call.
package nlu

import (
	"context"

	"github.com/carevox/carevox/internal/flow"
)

// Match is one resolution attempt's outcome.
type Match struct {
	Label      string  `json:"label"`
	NextStepID string  `json:"next_step_id"`
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Matcher resolves an utterance at a flow step to the next step.
type Matcher interface {
	Match(ctx context.Context, utterance, stepID string, m flow.FlowMap) (Match, error)
}

// Local applies the deterministic option matcher. It never errors.
type Local struct{}

func (Local) Match(_ context.Context, utterance, stepID string, m flow.FlowMap) (Match, error) {
	match := Match{Source: "local"}
	label, ok := flow.MatchUserResponse(utterance, stepID, m)
	if !ok {
		return match, nil
	}
	step, ok := m.Step(stepID)
	if !ok {
		return match, nil
	}
	for _, opt := range step.Options {
		if opt.Label == label {
			match.Label = opt.Label
			match.NextStepID = opt.Next
			match.Matched = true
			match.Confidence = 1
			break
		}
	}
	return match, nil
}

// Cascade tries the local matcher first and falls back to the remote
// matcher only when the local one misses. Remote may be nil.
type Cascade struct {
	Local  Matcher
	Remote Matcher
}

func (c Cascade) Match(ctx context.Context, utterance, stepID string, m flow.FlowMap) (Match, error) {
	local := c.Local
	if local == nil {
		local = Local{}
	}
	match, err := local.Match(ctx, utterance, stepID, m)
	if err == nil && match.Matched {
		return match, nil
	}
	if c.Remote == nil {
		return match, err
	}
	return c.Remote.Match(ctx, utterance, stepID, m)
}
