// Package scriptgen turns a free-text care scenario into a call script:
// a greeting plus a validated flow map the engine can run.
package scriptgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevox/carevox/internal/flow"
)

const generateSystemPrompt = `You design scripted patient follow-up call flows. Reply with JSON only:
{"title": string, "greeting": string, "steps": [{"id": string, "label": string, "type": "question"|"statement", "question": string, "options": [{"label": string, "keywords": [string], "next": string, "triggers_callback": bool}]}]}
Rules: step ids are short snake_case and unique; every non-terminal option "next" must reference an existing step id; terminal options use "end_call"; the last step is a statement that says goodbye; flag options needing clinical follow-up with triggers_callback. Keep the flow under ten steps.`

// Request describes the scenario to script.
type Request struct {
	Scenario    string `json:"scenario"`
	Language    string `json:"language,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// GeneratedScript is a validated generation result.
type GeneratedScript struct {
	Title    string       `json:"title"`
	Greeting string       `json:"greeting"`
	Flow     flow.FlowMap `json:"flow"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces call scripts with a chat model. Unlike the
// in-call model paths it fails loudly: an invalid flow must never be
// handed to the engine, and the caller falls back to the builtin flow.
type Generator struct {
	client chatClient
	model  string
}

func NewGenerator(apiKey, model string) *Generator {
	if strings.TrimSpace(apiKey) == "" {
		return &Generator{}
	}
	return &Generator{
		client: openai.NewClientWithConfig(openai.DefaultConfig(apiKey)),
		model:  model,
	}
}

// Enabled reports whether a model backend is configured.
func (g *Generator) Enabled() bool {
	return g != nil && g.client != nil
}

func (g *Generator) Generate(ctx context.Context, req Request) (GeneratedScript, error) {
	if !g.Enabled() {
		return GeneratedScript{}, fmt.Errorf("script generation is not configured")
	}
	if strings.TrimSpace(req.Scenario) == "" {
		return GeneratedScript{}, fmt.Errorf("scenario is required")
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.4,
		MaxTokens:   2048,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generateSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildGeneratePrompt(req)},
		},
	})
	if err != nil {
		return GeneratedScript{}, fmt.Errorf("generate script: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GeneratedScript{}, fmt.Errorf("generate script: empty model reply")
	}

	var out struct {
		Title    string          `json:"title"`
		Greeting string          `json:"greeting"`
		Steps    []flow.FlowStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return GeneratedScript{}, fmt.Errorf("generate script: unparseable model reply: %w", err)
	}

	m := flow.FlowMap{Title: strings.TrimSpace(out.Title), Steps: out.Steps}
	if m.Title == "" {
		m.Title = "Generated Follow-Up"
	}
	if err := flow.Validate(m); err != nil {
		return GeneratedScript{}, fmt.Errorf("generated flow rejected: %w", err)
	}

	return GeneratedScript{
		Title:    m.Title,
		Greeting: strings.TrimSpace(out.Greeting),
		Flow:     m,
	}, nil
}

func buildGeneratePrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", req.Scenario)
	if req.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.Language)
	}
	if req.PatientName != "" {
		fmt.Fprintf(&b, "Patient name: %s\n", req.PatientName)
	}
	return b.String()
}
