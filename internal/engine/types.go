// Package engine drives one follow-up call: it consumes the realtime
// session's event stream and owns the turn-taking state machine, the
// mic gate, playback-end detection, and the call transcript.
package engine

import (
	"fmt"
	"time"
)

// Status is the caller-visible call state.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusConnecting        Status = "connecting"
	StatusConnected         Status = "connected"
	StatusListening         Status = "listening"
	StatusUserSpeaking      Status = "user_speaking"
	StatusAssistantSpeaking Status = "assistant_speaking"
	StatusProcessing        Status = "processing"
	StatusEnded             Status = "ended"
	StatusError             Status = "error"
)

// Role labels a transcript entry's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TranscriptEntry is one finalized line of the call transcript. The
// transcript is append-only; entries are never edited after emission.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LatencyInfo tracks speech-stop to response-start latency as a last
// value plus a running average over the call.
type LatencyInfo struct {
	LastMS    int64   `json:"last_ms"`
	AverageMS float64 `json:"average_ms"`
	Turns     int     `json:"turns"`
}

func (l *LatencyInfo) observe(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	l.LastMS = ms
	l.Turns++
	l.AverageMS += (float64(ms) - l.AverageMS) / float64(l.Turns)
}

// ProviderError is a fatal upstream failure surfaced through OnError.
// Retryable tells the caller whether starting a fresh call is worth
// attempting; the failed call itself is never resumed.
type ProviderError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("realtime error %s: %s", e.Code, e.Message)
}

// Callbacks receive engine state changes. All fields are optional; nil
// callbacks are skipped. Callbacks run on engine goroutines and must
// not block.
type Callbacks struct {
	OnStatus     func(Status)
	OnTranscript func(TranscriptEntry)
	OnLatency    func(LatencyInfo)
	OnError      func(error)
}
