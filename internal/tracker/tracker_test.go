package tracker

import (
	"context"
	"testing"

	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/nlu"
)

func TestTrackerFollowsConversation(t *testing.T) {
	tr := New(flow.Builtin(), nlu.Local{})
	ctx := context.Background()

	if p := tr.Progress(); p.CurrentStepID != "intro" {
		t.Fatalf("CurrentStepID = %q, want intro before any turn", p.CurrentStepID)
	}

	tr.ObserveAssistant("Am I speaking with the patient? Please say yes or no.")
	if step, ok := tr.CurrentStep(); !ok || step.ID != "identity" {
		t.Fatalf("current step = %+v, want identity", step)
	}

	record, matched := tr.ObserveUser(ctx, "yes this is the patient")
	if !matched || record.MatchedLabel != "Yes" || record.NextStepID != "general_status" {
		t.Fatalf("record = %+v, want Yes -> general_status", record)
	}
	if step, _ := tr.CurrentStep(); step.ID != "general_status" {
		t.Fatalf("current step = %q, want general_status after match", step.ID)
	}

	tr.ObserveAssistant("How have you been feeling since you got home? Better, worse, or about the same?")
	record, matched = tr.ObserveUser(ctx, "honestly a bit worse")
	if !matched || record.MatchedLabel != "Worse" {
		t.Fatalf("record = %+v, want Worse", record)
	}
	if !record.TriggersCallback {
		t.Fatalf("record = %+v, want TriggersCallback for a worsening answer", record)
	}

	p := tr.Progress()
	if p.CurrentStepID != "symptoms" {
		t.Fatalf("CurrentStepID = %q, want symptoms", p.CurrentStepID)
	}
	if p.VisitedSteps != 2 || len(p.Records) != 2 {
		t.Fatalf("progress = %+v, want 2 visited steps", p)
	}
	if p.Completed {
		t.Fatalf("Completed = true mid-call")
	}
}

func TestTrackerOverwritesRevisitedStep(t *testing.T) {
	tr := New(flow.Builtin(), nlu.Local{})
	ctx := context.Background()

	tr.ObserveAssistant("How have you been feeling since you got home?")
	if _, matched := tr.ObserveUser(ctx, "worse I think"); !matched {
		t.Fatalf("first answer did not match")
	}

	// The assistant circles back and re-asks; the fresh answer replaces
	// the old record.
	tr.ObserveAssistant("How have you been feeling since you got home?")
	record, matched := tr.ObserveUser(ctx, "actually much better now")
	if !matched || record.MatchedLabel != "Better" {
		t.Fatalf("record = %+v, want Better on revisit", record)
	}

	p := tr.Progress()
	if p.VisitedSteps != 1 {
		t.Fatalf("VisitedSteps = %d, want 1 (revisit must not double count)", p.VisitedSteps)
	}
	if p.Records[0].MatchedLabel != "Better" || p.Records[0].TriggersCallback {
		t.Fatalf("Records[0] = %+v, want the overwritten Better answer", p.Records[0])
	}
}

func TestTrackerAdvancesPastSpokenStatement(t *testing.T) {
	tr := New(flow.Builtin(), nlu.Local{})
	ctx := context.Background()

	// The intro is a statement; once spoken there is nothing to answer,
	// so the tracker must already be waiting at the identity check.
	tr.ObserveAssistant("Hello, this is the care team calling to check in after your recent visit. This will only take a couple of minutes.")
	if step, ok := tr.CurrentStep(); !ok || step.ID != "identity" {
		t.Fatalf("current step = %+v, want identity after the intro statement", step)
	}

	record, matched := tr.ObserveUser(ctx, "yes, speaking")
	if !matched || record.StepID != "identity" || record.NextStepID != "general_status" {
		t.Fatalf("record = %+v, want the identity answer matched", record)
	}
	if step, _ := tr.CurrentStep(); step.ID != "general_status" {
		t.Fatalf("current step = %q, want general_status", step.ID)
	}
}

func TestTrackerUnmatchedReplyHoldsPosition(t *testing.T) {
	tr := New(flow.Builtin(), nlu.Local{})
	ctx := context.Background()

	tr.ObserveAssistant("Am I speaking with the patient? Please say yes or no.")
	record, matched := tr.ObserveUser(ctx, "who is calling please")
	if matched {
		t.Fatalf("record = %+v, want no match", record)
	}
	if step, _ := tr.CurrentStep(); step.ID != "identity" {
		t.Fatalf("current step = %q, want identity to hold", step.ID)
	}
}

func TestTrackerCompletesOnFarewell(t *testing.T) {
	tr := New(flow.Builtin(), nlu.Local{})

	tr.ObserveAssistant("Thank you for your time. If anything changes, please call the clinic. Take care, goodbye.")
	p := tr.Progress()
	if p.CurrentStepID != "closing" {
		t.Fatalf("CurrentStepID = %q, want closing", p.CurrentStepID)
	}
	if !p.Completed {
		t.Fatalf("Completed = false after the terminal farewell statement")
	}
}
