package session

import (
	"context"
	"testing"
	"time"
)

func TestRegistryCreateGetEnd(t *testing.T) {
	r := NewRegistry(time.Minute)
	c := r.Create("Maria Lopez", "Post-Discharge Follow-Up", "en", "voice")
	if c.ID == "" {
		t.Fatalf("call ID should not be empty")
	}

	got, err := r.Get(c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PatientName != "Maria Lopez" || got.ScriptTitle != "Post-Discharge Follow-Up" || got.Status != StatusActive {
		t.Fatalf("unexpected call state: %+v", got)
	}

	ended, err := r.End(c.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded || ended.EndedAt.IsZero() {
		t.Fatalf("ended call = %+v, want ended with timestamp", ended)
	}
}

func TestRegistryEndIsIdempotent(t *testing.T) {
	r := NewRegistry(time.Minute)
	c := r.Create("Maria Lopez", "Post-Discharge Follow-Up", "en", "voice")

	first, err := r.End(c.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	second, err := r.End(c.ID)
	if err != nil {
		t.Fatalf("End() second call error = %v", err)
	}
	if !second.EndedAt.Equal(first.EndedAt) {
		t.Fatalf("EndedAt changed on repeated End: %v vs %v", first.EndedAt, second.EndedAt)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(time.Minute)
	if _, err := r.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryJanitorExpiresInactive(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)
	var expired []*Call
	done := make(chan struct{})
	r.SetExpireHook(func(c *Call) {
		expired = append(expired, c)
		close(done)
	})
	c := r.Create("Maria Lopez", "Post-Discharge Follow-Up", "en", "voice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor never expired the idle call")
	}

	got, err := r.Get(c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if len(expired) != 1 || expired[0].ID != c.ID {
		t.Fatalf("expire hook saw %+v, want the idle call", expired)
	}
}
