// Package realtime is the boundary to the hosted speech service: an
// ephemeral-credential bootstrap plus one bidirectional websocket event
// stream carrying speech, transcript, and response lifecycle events.
package realtime

import (
	"encoding/json"
	"fmt"
)

// EventKind is the tagged-union discriminator over the server event
// types the engine consumes. Unknown types map to KindUnknown and are
// ignored, never fatal.
type EventKind string

const (
	KindSessionCreated         EventKind = "session.created"
	KindSessionUpdated         EventKind = "session.updated"
	KindSpeechStarted          EventKind = "input_audio_buffer.speech_started"
	KindSpeechStopped          EventKind = "input_audio_buffer.speech_stopped"
	KindResponseCreated        EventKind = "response.created"
	KindAudioDelta             EventKind = "response.audio.delta"
	KindTranscriptDelta        EventKind = "response.audio_transcript.delta"
	KindTranscriptDone         EventKind = "response.audio_transcript.done"
	KindInputTranscriptionDone EventKind = "conversation.item.input_audio_transcription.completed"
	KindResponseDone           EventKind = "response.done"
	KindError                  EventKind = "error"
	KindUnknown                EventKind = "unknown"
)

// ServerEvent is one parsed event off the session stream. Only the
// fields relevant to the event's kind are populated.
type ServerEvent struct {
	Kind        EventKind
	Delta       string // transcript delta text
	Transcript  string // completed transcript text
	AudioBase64 string // base64 PCM16LE audio chunk
	ErrCode     string
	ErrMessage  string
}

type serverEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseServerEvent decodes one raw stream payload. Malformed JSON is an
// error the caller logs and drops; an unrecognized type is not an error,
// it parses to KindUnknown.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var env serverEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ServerEvent{}, fmt.Errorf("invalid server event: %w", err)
	}

	switch EventKind(env.Type) {
	case KindSessionCreated, KindSessionUpdated, KindSpeechStarted,
		KindSpeechStopped, KindResponseCreated, KindResponseDone:
		return ServerEvent{Kind: EventKind(env.Type)}, nil
	case KindTranscriptDelta:
		return ServerEvent{Kind: KindTranscriptDelta, Delta: env.Delta}, nil
	case KindAudioDelta:
		return ServerEvent{Kind: KindAudioDelta, AudioBase64: env.Delta}, nil
	case KindTranscriptDone:
		return ServerEvent{Kind: KindTranscriptDone, Transcript: env.Transcript}, nil
	case KindInputTranscriptionDone:
		return ServerEvent{Kind: KindInputTranscriptionDone, Transcript: env.Transcript}, nil
	case KindError:
		evt := ServerEvent{Kind: KindError}
		if env.Error != nil {
			evt.ErrCode = env.Error.Code
			evt.ErrMessage = env.Error.Message
		}
		return evt, nil
	default:
		return ServerEvent{Kind: KindUnknown}, nil
	}
}
