package realtime

import "context"

// DialRequest carries everything needed to open one realtime session.
type DialRequest struct {
	PatientName  string
	SystemPrompt string
	Voice        string
	Mode         string
}

// Session is one live bidirectional stream to the speech service. The
// engine owns exactly one per call.
type Session interface {
	// Events yields parsed server events. The channel is closed when the
	// transport closes, which the engine treats as an implicit end-call.
	Events() <-chan ServerEvent
	// CreateResponse instructs the service to produce a response now.
	CreateResponse(ctx context.Context) error
	// SetMicEnabled gates the outbound microphone track. False while the
	// assistant is speaking; the no-barge-in policy depends on it.
	SetMicEnabled(ctx context.Context, enabled bool) error
	Close() error
}

// Dialer opens sessions. The engine depends on this interface so tests
// and the simulator can substitute a scripted session.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Session, error)
}
