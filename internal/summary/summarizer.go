package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevox/carevox/internal/engine"
	"github.com/carevox/carevox/internal/policy"
	"github.com/carevox/carevox/internal/reliability"
	"github.com/carevox/carevox/internal/tracker"
)

const (
	summarySystemPrompt = `You summarize a scripted patient follow-up call for the care team. Reply with JSON only: {"outcome": "completed"|"incomplete"|"wrong_number"|"no_answer"|"unknown", "key_findings": [string], "narrative": string}. Key findings are short clinical bullet points. Never include phone numbers, emails, or identifiers.`

	summaryRetryBase = 500 * time.Millisecond
	summaryRetryCap  = 2 * time.Second
	summaryAttempts  = 2
)

// Call outcomes. wrong_number covers the identity-check branch; unknown
// is the fallback for calls that failed before their shape could be
// classified.
const (
	OutcomeCompleted   = "completed"
	OutcomeIncomplete  = "incomplete"
	OutcomeWrongNumber = "wrong_number"
	OutcomeNoAnswer    = "no_answer"
	OutcomeUnknown     = "unknown"
)

var validOutcomes = map[string]struct{}{
	OutcomeCompleted:   {},
	OutcomeIncomplete:  {},
	OutcomeWrongNumber: {},
	OutcomeNoAnswer:    {},
	OutcomeUnknown:     {},
}

// CallSummary is the end-of-call report.
type CallSummary struct {
	Outcome           string    `json:"outcome"`
	PatientResponses  []string  `json:"patient_responses,omitempty"`
	KeyFindings       []string  `json:"key_findings"`
	Narrative         string    `json:"narrative"`
	Language          string    `json:"language,omitempty"`
	CallbackRequested bool      `json:"callback_requested"`
	CallbackReasons   []string  `json:"callback_reasons,omitempty"`
	Source            string    `json:"source"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Input collects everything the summarizer may draw on.
type Input struct {
	PatientName       string
	Language          string
	Transcript        []engine.TranscriptEntry
	Progress          tracker.Progress
	CallbackRequested bool
	CallbackReasons   []string
	Failed            bool
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer builds the call summary with a chat model, falling back to
// a deterministic local summary when the model is unavailable. Summarize
// always returns a usable summary.
type Summarizer struct {
	client chatClient
	model  string
}

// NewSummarizer returns a model-backed summarizer. An empty API key
// yields a local-only summarizer.
func NewSummarizer(apiKey, model string) *Summarizer {
	if strings.TrimSpace(apiKey) == "" {
		return &Summarizer{}
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(openai.DefaultConfig(apiKey)),
		model:  model,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, in Input) CallSummary {
	if s.client != nil {
		if summary, ok := s.remoteSummary(ctx, in); ok {
			return summary
		}
	}
	return s.localSummary(in)
}

func (s *Summarizer) remoteSummary(ctx context.Context, in Input) (CallSummary, bool) {
	prompt := buildSummaryPrompt(in)

	for attempt := 0; attempt < summaryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return CallSummary{}, false
			case <-time.After(reliability.ExponentialBackoff(attempt, summaryRetryBase, summaryRetryCap)):
			}
		}

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Temperature: 0.2,
			MaxTokens:   512,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			log.Printf("summary: model attempt %d failed: %v", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			continue
		}

		var out struct {
			Outcome     string   `json:"outcome"`
			KeyFindings []string `json:"key_findings"`
			Narrative   string   `json:"narrative"`
		}
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
			log.Printf("summary: unparseable model reply: %v", err)
			continue
		}
		if _, ok := validOutcomes[out.Outcome]; !ok || len(out.KeyFindings) == 0 {
			continue
		}
		return CallSummary{
			Outcome:           out.Outcome,
			PatientResponses:  patientResponses(in.Transcript),
			KeyFindings:       out.KeyFindings,
			Narrative:         out.Narrative,
			Language:          in.Language,
			CallbackRequested: in.CallbackRequested,
			CallbackReasons:   in.CallbackReasons,
			Source:            "model",
			GeneratedAt:       time.Now().UTC(),
		}, true
	}
	return CallSummary{}, false
}

// localSummary is the deterministic fallback. It always produces at
// least one key finding so downstream consumers never see an empty
// report.
func (s *Summarizer) localSummary(in Input) CallSummary {
	findings := make([]string, 0, len(in.Progress.Records)+1)
	for _, rec := range in.Progress.Records {
		if !rec.Matched {
			continue
		}
		finding := fmt.Sprintf("%s: %s", rec.StepLabel, rec.MatchedLabel)
		if rec.TriggersCallback {
			finding += " (flagged for follow-up)"
		}
		findings = append(findings, finding)
	}
	if len(findings) == 0 {
		findings = append(findings, "Call ended before any scripted question was answered")
	}

	narrative := fmt.Sprintf("Follow-up call covering %d of %d scripted steps.",
		in.Progress.VisitedSteps, in.Progress.TotalSteps)
	if in.CallbackRequested {
		narrative += " A callback was requested."
	}

	return CallSummary{
		Outcome:           localOutcome(in),
		PatientResponses:  patientResponses(in.Transcript),
		KeyFindings:       findings,
		Narrative:         narrative,
		Language:          in.Language,
		CallbackRequested: in.CallbackRequested,
		CallbackReasons:   in.CallbackReasons,
		Source:            "local",
		GeneratedAt:       time.Now().UTC(),
	}
}

// localOutcome classifies the call from its transcript shape. A call
// that captured any patient speech counts as completed; incomplete is
// reserved for calls torn down before the patient said anything on an
// already-begun script.
func localOutcome(in Input) string {
	if in.Failed {
		return OutcomeUnknown
	}
	if reachedWrongNumber(in.Progress) {
		return OutcomeWrongNumber
	}
	var sawUser, sawAssistant bool
	for _, entry := range in.Transcript {
		switch entry.Role {
		case engine.RoleUser:
			sawUser = true
		case engine.RoleAssistant:
			sawAssistant = true
		}
	}
	switch {
	case sawUser:
		return OutcomeCompleted
	case sawAssistant:
		return OutcomeNoAnswer
	default:
		return OutcomeIncomplete
	}
}

func reachedWrongNumber(p tracker.Progress) bool {
	if p.CurrentStepID == "wrong_number" {
		return true
	}
	for _, rec := range p.Records {
		if rec.NextStepID == "wrong_number" {
			return true
		}
	}
	return false
}

// patientResponses extracts the caller's utterances in transcript
// order, truncated to keep the report skimmable.
func patientResponses(entries []engine.TranscriptEntry) []string {
	var out []string
	for _, entry := range entries {
		if entry.Role != engine.RoleUser {
			continue
		}
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		if r := []rune(text); len(r) > 80 {
			text = string(r[:77]) + "..."
		}
		out = append(out, text)
	}
	return out
}

// buildSummaryPrompt renders the transcript with PII masked; the raw
// transcript never leaves the process.
func buildSummaryPrompt(in Input) string {
	var b strings.Builder
	if in.PatientName != "" {
		fmt.Fprintf(&b, "Patient: %s\n", in.PatientName)
	}
	fmt.Fprintf(&b, "Flow: %s\n", in.Progress.FlowTitle)
	fmt.Fprintf(&b, "Steps covered: %d of %d\n", in.Progress.VisitedSteps, in.Progress.TotalSteps)
	if in.CallbackRequested {
		fmt.Fprintf(&b, "Callback requested: %s\n", strings.Join(in.CallbackReasons, "; "))
	}
	b.WriteString("Transcript:\n")
	for _, entry := range in.Transcript {
		text, _ := policy.RedactPII(entry.Text)
		fmt.Fprintf(&b, "%s: %s\n", entry.Role, text)
	}
	return b.String()
}
