package nlu

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevox/carevox/internal/flow"
)

type fakeChat struct {
	content string
	err     error
	calls   int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestLocalMatch(t *testing.T) {
	m := flow.Builtin()
	match, err := Local{}.Match(context.Background(), "yes that's me", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !match.Matched || match.NextStepID != "general_status" {
		t.Fatalf("match = %+v, want matched to general_status", match)
	}
	if match.Source != "local" {
		t.Fatalf("Source = %q, want local", match.Source)
	}
}

func TestLocalNoMatch(t *testing.T) {
	m := flow.Builtin()
	match, err := Local{}.Match(context.Background(), "the weather is nice", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if match.Matched {
		t.Fatalf("match = %+v, want no match", match)
	}
}

func TestRemoteMatchResolvesLabel(t *testing.T) {
	m := flow.Builtin()
	r := &Remote{
		client: &fakeChat{content: `{"matched":true,"option_label":"Yes","confidence":0.92}`},
		model:  "gpt-4o-mini",
	}
	match, err := r.Match(context.Background(), "mmm I suppose that is correct", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !match.Matched || match.NextStepID != "general_status" {
		t.Fatalf("match = %+v, want matched to general_status", match)
	}
	if match.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", match.Confidence)
	}
}

func TestRemoteDegradesOnProviderError(t *testing.T) {
	m := flow.Builtin()
	r := &Remote{
		client: &fakeChat{err: errors.New("rate limited")},
		model:  "gpt-4o-mini",
	}
	match, err := r.Match(context.Background(), "yes", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v, want degraded nil", err)
	}
	if match.Matched {
		t.Fatalf("match = %+v, want no match on provider failure", match)
	}
}

func TestRemoteRejectsUnknownLabel(t *testing.T) {
	m := flow.Builtin()
	r := &Remote{
		client: &fakeChat{content: `{"matched":true,"option_label":"Perhaps","confidence":0.7}`},
		model:  "gpt-4o-mini",
	}
	match, err := r.Match(context.Background(), "maybe", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if match.Matched {
		t.Fatalf("match = %+v, want no match for an invented label", match)
	}
}

func TestCascadePrefersLocal(t *testing.T) {
	m := flow.Builtin()
	remote := &fakeChat{content: `{"matched":true,"option_label":"No","confidence":0.9}`}
	c := Cascade{Local: Local{}, Remote: &Remote{client: remote, model: "gpt-4o-mini"}}

	match, err := c.Match(context.Background(), "yes that's me", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !match.Matched || match.Source != "local" {
		t.Fatalf("match = %+v, want local match", match)
	}
	if remote.calls != 0 {
		t.Fatalf("remote called %d times, want 0 when local matches", remote.calls)
	}
}

func TestCascadeFallsBackToRemote(t *testing.T) {
	m := flow.Builtin()
	remote := &fakeChat{content: `{"matched":true,"option_label":"Yes","confidence":0.8}`}
	c := Cascade{Local: Local{}, Remote: &Remote{client: remote, model: "gpt-4o-mini"}}

	match, err := c.Match(context.Background(), "mmm I suppose so", "identity", m)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !match.Matched || match.Source != "remote" {
		t.Fatalf("match = %+v, want remote match", match)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}
}
