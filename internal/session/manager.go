package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("call not found")

// Call is the registry's metadata record for one follow-up call. The
// live engine state lives with the call's owner; the registry tracks
// identity, liveness, and expiry.
type Call struct {
	ID             string    `json:"call_id"`
	PatientName    string    `json:"patient_name"`
	ScriptTitle    string    `json:"script_title"`
	Language       string    `json:"language"`
	Mode           string    `json:"mode"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
}

type Registry struct {
	mu                sync.RWMutex
	calls             map[string]*Call
	inactivityTimeout time.Duration
	onExpire          func(*Call)
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Registry{
		calls:             make(map[string]*Call),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers the callback run for calls the janitor expires.
func (r *Registry) SetExpireHook(hook func(*Call)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

func (r *Registry) Create(patientName, scriptTitle, language, mode string) *Call {
	now := time.Now().UTC()
	c := &Call{
		ID:             uuid.NewString(),
		PatientName:    patientName,
		ScriptTitle:    scriptTitle,
		Language:       language,
		Mode:           mode,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = c
	return clone(c)
}

func (r *Registry) Get(callID string) (*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (r *Registry) Touch(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.LastActivityAt = time.Now().UTC()
	return nil
}

// End marks the call ended. Ending an already-ended call is not an
// error; the first end wins and later calls see the settled record.
func (r *Registry) End(callID string) (*Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != StatusEnded {
		now := time.Now().UTC()
		c.Status = StatusEnded
		c.EndedAt = now
		c.LastActivityAt = now
	}
	return clone(c), nil
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, c := range r.calls {
		if c.Status == StatusActive {
			count++
		}
	}
	return count
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []*Call

	r.mu.Lock()
	for _, c := range r.calls {
		if c.Status != StatusActive {
			continue
		}
		if now.Sub(c.LastActivityAt) < r.inactivityTimeout {
			continue
		}
		c.Status = StatusEnded
		c.EndedAt = now
		c.LastActivityAt = now
		expired = append(expired, clone(c))
	}
	hook := r.onExpire
	r.mu.Unlock()

	if hook != nil {
		for _, c := range expired {
			hook(c)
		}
	}
}

func clone(c *Call) *Call {
	out := *c
	return &out
}
