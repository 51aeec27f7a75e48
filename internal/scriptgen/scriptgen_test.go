package scriptgen

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

const validReply = `{
	"title": "Post-Op Knee Check",
	"greeting": "Hello, this is the surgical care team.",
	"steps": [
		{"id": "identity", "label": "Identity", "question": "Am I speaking with the patient?",
		 "options": [{"label": "Yes", "keywords": ["yes"], "next": "pain"}, {"label": "No", "next": "closing"}]},
		{"id": "pain", "label": "Pain check", "question": "Is the surgical site painful?",
		 "options": [{"label": "Yes", "next": "closing", "triggers_callback": true}, {"label": "No", "next": "closing"}]},
		{"id": "closing", "label": "Closing", "type": "statement", "question": "Thank you, goodbye.",
		 "options": [{"label": "End", "next": "end_call"}]}
	]
}`

func TestGenerateValidFlow(t *testing.T) {
	g := &Generator{client: &fakeChat{content: validReply}, model: "gpt-4o"}
	got, err := g.Generate(context.Background(), Request{Scenario: "post-op knee replacement follow-up"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Title != "Post-Op Knee Check" || len(got.Flow.Steps) != 3 {
		t.Fatalf("got = %+v, want 3-step flow", got)
	}
	if got.Greeting == "" {
		t.Fatalf("Greeting empty")
	}
	step, ok := got.Flow.Step("pain")
	if !ok || !step.Options[0].TriggersCallback {
		t.Fatalf("pain step = %+v, want callback-flagged first option", step)
	}
}

func TestGenerateRejectsDanglingNext(t *testing.T) {
	reply := `{"title":"Broken","greeting":"hi","steps":[
		{"id":"a","label":"A","question":"Q?","options":[{"label":"Yes","next":"missing"}]}]}`
	g := &Generator{client: &fakeChat{content: reply}, model: "gpt-4o"}
	if _, err := g.Generate(context.Background(), Request{Scenario: "x"}); err == nil {
		t.Fatalf("Generate() = nil error, want rejection of dangling next")
	}
}

func TestGenerateProviderError(t *testing.T) {
	g := &Generator{client: &fakeChat{err: errors.New("unavailable")}, model: "gpt-4o"}
	if _, err := g.Generate(context.Background(), Request{Scenario: "x"}); err == nil {
		t.Fatalf("Generate() = nil error, want provider error surfaced")
	}
}

func TestGenerateRequiresScenario(t *testing.T) {
	g := &Generator{client: &fakeChat{content: validReply}, model: "gpt-4o"}
	if _, err := g.Generate(context.Background(), Request{}); err == nil {
		t.Fatalf("Generate() = nil error, want scenario requirement")
	}
}

func TestGeneratorDisabledWithoutKey(t *testing.T) {
	g := NewGenerator("", "gpt-4o")
	if g.Enabled() {
		t.Fatalf("Enabled() = true without an API key")
	}
	if _, err := g.Generate(context.Background(), Request{Scenario: "x"}); err == nil {
		t.Fatalf("Generate() = nil error on a disabled generator")
	}
}
