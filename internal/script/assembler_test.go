package script

import (
	"strings"
	"testing"

	"github.com/carevox/carevox/internal/flow"
)

func TestAssembleIncludesGreetingAndSteps(t *testing.T) {
	out := Assemble(Params{
		Greeting:    "Hi, this is a follow-up call.",
		PatientName: "Maria",
		Language:    "English",
		Flow:        flow.Builtin(),
	})

	for _, want := range []string{
		"Hi, this is a follow-up call.",
		"Maria",
		"Speak English.",
		"Post-Discharge Follow-Up",
		"[medication]",
		"ask and wait",
		"say and continue",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("Assemble() output missing %q", want)
		}
	}
}

func TestAssembleDefaultGreeting(t *testing.T) {
	out := Assemble(Params{Flow: flow.Builtin()})
	if !strings.Contains(out, "Greeting (open the call with this):") {
		t.Fatalf("Assemble() output missing greeting section")
	}
	if !strings.Contains(out, "quick follow-up") {
		t.Fatalf("Assemble() output missing default greeting")
	}
}

func TestAssembleCallbackBranches(t *testing.T) {
	out := Assemble(Params{Flow: flow.Builtin()})
	if !strings.Contains(out, "call them back") {
		t.Fatalf("Assemble() output missing callback instruction for triggering branches")
	}
}

func TestAssembleDeterministic(t *testing.T) {
	p := Params{Greeting: "Hello.", Flow: flow.Builtin()}
	if Assemble(p) != Assemble(p) {
		t.Fatalf("Assemble() is not deterministic for identical params")
	}
}
