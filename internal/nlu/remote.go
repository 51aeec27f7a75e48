package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevox/carevox/internal/flow"
)

const remoteSystemPrompt = `You map a patient's reply onto one of the listed options of a scripted follow-up call step. Reply with JSON only: {"matched": bool, "option_label": string, "confidence": number between 0 and 1}. If no option fits, set matched to false.`

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Remote asks a chat model to pick the option a free-form utterance
// refers to. Any provider or parse failure degrades to a no-match so a
// flaky model can never stall the call.
type Remote struct {
	client chatClient
	model  string
}

func NewRemote(apiKey, model string) *Remote {
	cfg := openai.DefaultConfig(apiKey)
	return &Remote{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (r *Remote) Match(ctx context.Context, utterance, stepID string, m flow.FlowMap) (Match, error) {
	miss := Match{Source: "remote"}

	step, ok := m.Step(stepID)
	if !ok || len(step.Options) == 0 {
		return miss, nil
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   128,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: remoteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildMatchPrompt(utterance, step)},
		},
	})
	if err != nil {
		log.Printf("nlu: remote match degraded to no-match: %v", err)
		return miss, nil
	}
	if len(resp.Choices) == 0 {
		return miss, nil
	}

	var out struct {
		Matched     bool    `json:"matched"`
		OptionLabel string  `json:"option_label"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		log.Printf("nlu: unparseable remote match reply: %v", err)
		return miss, nil
	}
	if !out.Matched {
		return miss, nil
	}

	for _, opt := range step.Options {
		if strings.EqualFold(strings.TrimSpace(opt.Label), strings.TrimSpace(out.OptionLabel)) {
			return Match{
				Label:      opt.Label,
				NextStepID: opt.Next,
				Matched:    true,
				Confidence: out.Confidence,
				Source:     "remote",
			}, nil
		}
	}
	// The model invented a label that is not on the step.
	log.Printf("nlu: remote match named unknown option %q at step %q", out.OptionLabel, stepID)
	return miss, nil
}

func buildMatchPrompt(utterance string, step flow.FlowStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step question: %s\n", step.Question)
	b.WriteString("Options:\n")
	for _, opt := range step.Options {
		fmt.Fprintf(&b, "- %s", opt.Label)
		if len(opt.Keywords) > 0 {
			fmt.Fprintf(&b, " (keywords: %s)", strings.Join(opt.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Patient reply: %q\n", utterance)
	return b.String()
}
