// Package script builds the single instruction payload handed to the
// speech service at session start. Pure and stateless: the same inputs
// always produce the same payload.
package script

import (
	"fmt"
	"strings"

	"github.com/carevox/carevox/internal/flow"
)

// baseTemplate fixes the behavioral contract the speech model must
// follow regardless of which interview script is loaded.
const baseTemplate = `You are a calm, professional care-team assistant making a scripted follow-up phone call. Follow the interview script below step by step.

Rules:
- Ask exactly one question at a time, then stop and wait for the answer.
- Keep every utterance short and conversational; this is a phone call.
- Never interrupt the patient and never talk over them.
- If an answer is unclear, ask the same question again in simpler words.
- Statements marked "say and continue" are spoken without waiting for a reply.
- Stay strictly on script. Do not give medical advice beyond the script text.
- If the patient reports anything worrying, or the script branch says so, tell them that someone from the care team will call them back.
- When the script reaches its closing step, say the farewell and nothing more.`

// Params carries everything Assemble combines.
type Params struct {
	Greeting    string
	PatientName string
	Language    string
	Mode        string
	Flow        flow.FlowMap
}

// Assemble combines the base behavioral template, the greeting, and the
// step/branch data into one instruction string.
func Assemble(p Params) string {
	var b strings.Builder
	b.WriteString(baseTemplate)
	b.WriteString("\n\n")

	if lang := strings.TrimSpace(p.Language); lang != "" {
		fmt.Fprintf(&b, "Speak %s. Switch only if the patient clearly speaks another language.\n", lang)
	}
	if mode := strings.TrimSpace(p.Mode); mode != "" {
		fmt.Fprintf(&b, "Call mode: %s.\n", mode)
	}
	if name := strings.TrimSpace(p.PatientName); name != "" {
		fmt.Fprintf(&b, "The patient's name is %s. Use it naturally in the greeting.\n", name)
	}

	greeting := strings.TrimSpace(p.Greeting)
	if greeting == "" {
		greeting = "Hello, this is the care team calling for a quick follow-up."
	}
	fmt.Fprintf(&b, "\nGreeting (open the call with this):\n%s\n", greeting)

	fmt.Fprintf(&b, "\nInterview script: %s\n", p.Flow.Title)
	for i, step := range p.Flow.Steps {
		fmt.Fprintf(&b, "\nStep %d [%s] %s", i+1, step.ID, step.Label)
		if step.Kind() == flow.StepStatement {
			b.WriteString(" (say and continue)")
		} else {
			b.WriteString(" (ask and wait)")
		}
		b.WriteString(":\n")
		fmt.Fprintf(&b, "  %s\n", strings.TrimSpace(step.Question))
		if info := strings.TrimSpace(step.Info); info != "" {
			fmt.Fprintf(&b, "  Note: %s\n", info)
		}
		for _, opt := range step.Options {
			target := opt.Next
			if target == "" || target == flow.NextEndCall {
				target = "end the call"
			} else {
				target = "go to step " + target
			}
			fmt.Fprintf(&b, "  - If the answer means %q: %s", opt.Label, target)
			if opt.TriggersCallback {
				b.WriteString("; tell the patient someone from the care team will call them back")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
