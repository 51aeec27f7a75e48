package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevox/carevox/internal/engine"
	"github.com/carevox/carevox/internal/tracker"
)

type fakeChat struct {
	content  string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestCallbackDetectorSticky(t *testing.T) {
	d := NewCallbackDetector()
	if d.Requested() {
		t.Fatalf("Requested() = true before any observation")
	}
	if !d.ObserveAssistant("I'll have someone call you back within the hour.") {
		t.Fatalf("ObserveAssistant() = false, want callback phrase detected")
	}
	d.ObserveAssistant("Anything else I can help with?")
	if !d.Requested() {
		t.Fatalf("Requested() = false, flag must stay set")
	}
}

func TestCallbackDetectorDedupesReasons(t *testing.T) {
	d := NewCallbackDetector()
	d.Note("patient reported worsening symptoms")
	d.Note("patient reported worsening symptoms")
	d.Note("medication not taken as prescribed")

	reasons := d.Reasons()
	if len(reasons) != 2 {
		t.Fatalf("Reasons() = %v, want 2 de-duplicated reasons", reasons)
	}
	if reasons[0] != "patient reported worsening symptoms" {
		t.Fatalf("Reasons()[0] = %q, want first-seen order preserved", reasons[0])
	}
}

func TestCallbackDetectorSpanishPhrase(t *testing.T) {
	d := NewCallbackDetector()
	if !d.ObserveAssistant("Le llamaremos mañana para confirmar.") {
		t.Fatalf("ObserveAssistant() = false for Spanish callback phrase")
	}
}

func TestSummarizeUsesModelReply(t *testing.T) {
	chat := &fakeChat{content: `{"outcome":"completed","key_findings":["Feeling better","Medication on schedule"],"narrative":"Routine follow-up, no concerns."}`}
	s := &Summarizer{client: chat, model: "gpt-4o-mini"}

	got := s.Summarize(context.Background(), Input{
		Progress:          tracker.Progress{Completed: true},
		CallbackRequested: true,
		CallbackReasons:   []string{"open questions for the care team"},
	})
	if got.Source != "model" || got.Outcome != "completed" {
		t.Fatalf("summary = %+v, want model-sourced completed summary", got)
	}
	if len(got.KeyFindings) != 2 {
		t.Fatalf("KeyFindings = %v, want 2", got.KeyFindings)
	}
	if !got.CallbackRequested {
		t.Fatalf("CallbackRequested = false, want carried through")
	}
}

func TestSummarizeFallsBackOnProviderError(t *testing.T) {
	chat := &fakeChat{err: errors.New("rate limited")}
	s := &Summarizer{client: chat, model: "gpt-4o-mini"}

	got := s.Summarize(context.Background(), Input{
		Transcript: []engine.TranscriptEntry{
			{Role: engine.RoleAssistant, Text: "How have you been feeling since discharge?"},
			{Role: engine.RoleUser, Text: "A bit worse, honestly."},
		},
		Progress: tracker.Progress{
			TotalSteps:   8,
			VisitedSteps: 5,
			Records: []tracker.StepRecord{
				{StepLabel: "General status", MatchedLabel: "Worse", Matched: true, TriggersCallback: true},
			},
		},
	})
	if got.Source != "local" {
		t.Fatalf("Source = %q, want local fallback", got.Source)
	}
	if got.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %q, want completed for a call with patient speech", got.Outcome)
	}
	if len(got.KeyFindings) == 0 {
		t.Fatalf("KeyFindings empty, fallback must always produce findings")
	}
	if len(chat.requests) != summaryAttempts {
		t.Fatalf("model attempts = %d, want %d", len(chat.requests), summaryAttempts)
	}
}

func TestLocalSummaryNeverEmpty(t *testing.T) {
	s := NewSummarizer("", "")
	got := s.Summarize(context.Background(), Input{Failed: true})
	if got.Outcome != OutcomeUnknown {
		t.Fatalf("Outcome = %q, want unknown for a failed call", got.Outcome)
	}
	if len(got.KeyFindings) == 0 {
		t.Fatalf("KeyFindings empty, want placeholder finding")
	}
}

func TestLocalOutcomeClassification(t *testing.T) {
	assistantOnly := []engine.TranscriptEntry{
		{Role: engine.RoleAssistant, Text: "Hello, this is the clinic calling for Maria."},
	}
	bothSides := append(assistantOnly, engine.TranscriptEntry{
		Role: engine.RoleUser, Text: "Yes, speaking.",
	})

	cases := []struct {
		name string
		in   Input
		want string
	}{
		{"failed call", Input{Failed: true, Transcript: bothSides}, OutcomeUnknown},
		{"no patient speech", Input{Transcript: assistantOnly}, OutcomeNoAnswer},
		{"patient spoke", Input{Transcript: bothSides}, OutcomeCompleted},
		{"empty transcript", Input{}, OutcomeIncomplete},
		{"wrong number branch", Input{
			Transcript: bothSides,
			Progress: tracker.Progress{
				Records: []tracker.StepRecord{
					{StepID: "identity", MatchedLabel: "No", NextStepID: "wrong_number", Matched: true},
				},
			},
		}, OutcomeWrongNumber},
	}
	for _, tc := range cases {
		if got := localOutcome(tc.in); got != tc.want {
			t.Fatalf("%s: localOutcome = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestLocalSummaryCollectsPatientResponses(t *testing.T) {
	long := strings.Repeat("the pain comes and goes ", 10)
	s := NewSummarizer("", "")
	got := s.Summarize(context.Background(), Input{
		Language: "es",
		Transcript: []engine.TranscriptEntry{
			{Role: engine.RoleAssistant, Text: "Am I speaking with Maria?"},
			{Role: engine.RoleUser, Text: "Yes, speaking."},
			{Role: engine.RoleAssistant, Text: "How are you feeling?"},
			{Role: engine.RoleUser, Text: long},
			{Role: engine.RoleSystem, Text: "Call ended"},
		},
	})
	if got.Language != "es" {
		t.Fatalf("Language = %q, want es carried through", got.Language)
	}
	if len(got.PatientResponses) != 2 {
		t.Fatalf("PatientResponses = %v, want the 2 user turns in order", got.PatientResponses)
	}
	if got.PatientResponses[0] != "Yes, speaking." {
		t.Fatalf("PatientResponses[0] = %q, want first user turn", got.PatientResponses[0])
	}
	if n := len([]rune(got.PatientResponses[1])); n > 80 {
		t.Fatalf("PatientResponses[1] length = %d runes, want truncated to 80", n)
	}
	if !strings.HasSuffix(got.PatientResponses[1], "...") {
		t.Fatalf("PatientResponses[1] = %q, want truncation ellipsis", got.PatientResponses[1])
	}
}

func TestSummaryPromptRedactsPII(t *testing.T) {
	prompt := buildSummaryPrompt(Input{
		Transcript: []engine.TranscriptEntry{
			{Role: engine.RoleUser, Text: "you can reach me at maria.lopez@example.com or 555-123-4567"},
		},
	})
	if strings.Contains(prompt, "maria.lopez@example.com") || strings.Contains(prompt, "555-123-4567") {
		t.Fatalf("prompt leaked PII:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[REDACTED_EMAIL]") {
		t.Fatalf("prompt missing email redaction marker:\n%s", prompt)
	}
}
