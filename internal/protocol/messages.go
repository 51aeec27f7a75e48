// Package protocol defines the JSON envelope spoken on the UI
// websocket: a small tagged union of control messages inbound and call
// state messages outbound.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carevox/carevox/internal/engine"
	"github.com/carevox/carevox/internal/summary"
	"github.com/carevox/carevox/internal/tracker"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl   MessageType = "client_control"
	TypeStatusUpdate    MessageType = "status_update"
	TypeTranscriptEntry MessageType = "transcript_entry"
	TypeLatencyUpdate   MessageType = "latency_update"
	TypeFlowProgress    MessageType = "flow_progress"
	TypeCallSummary     MessageType = "call_summary"
	TypeSystemEvent     MessageType = "system_event"
	TypeErrorEvent      MessageType = "error_event"
)

// Control actions accepted from the UI.
const (
	ActionStartCall = "start_call"
	ActionEndCall   = "end_call"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientControl is the only inbound message. StartCall carries the call
// setup fields; EndCall needs just the call id.
type ClientControl struct {
	Type        MessageType `json:"type"`
	Action      string      `json:"action"`
	CallID      string      `json:"call_id,omitempty"`
	PatientName string      `json:"patient_name,omitempty"`
	Language    string      `json:"language,omitempty"`
	Mode        string      `json:"mode,omitempty"`
	ScriptTitle string      `json:"script_title,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

type StatusUpdate struct {
	Type   MessageType   `json:"type"`
	CallID string        `json:"call_id"`
	Status engine.Status `json:"status"`
}

type TranscriptEntryMsg struct {
	Type   MessageType            `json:"type"`
	CallID string                 `json:"call_id"`
	Entry  engine.TranscriptEntry `json:"entry"`
}

type LatencyUpdate struct {
	Type    MessageType        `json:"type"`
	CallID  string             `json:"call_id"`
	Latency engine.LatencyInfo `json:"latency"`
}

type FlowProgress struct {
	Type     MessageType      `json:"type"`
	CallID   string           `json:"call_id"`
	Progress tracker.Progress `json:"progress"`
}

type CallSummaryMsg struct {
	Type    MessageType         `json:"type"`
	CallID  string              `json:"call_id"`
	Summary summary.CallSummary `json:"summary"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id,omitempty"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	CallID    string      `json:"call_id,omitempty"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// NewStatusUpdate and friends stamp the discriminator so handlers never
// marshal an untyped payload.
func NewStatusUpdate(callID string, st engine.Status) StatusUpdate {
	return StatusUpdate{Type: TypeStatusUpdate, CallID: callID, Status: st}
}

func NewTranscriptEntry(callID string, entry engine.TranscriptEntry) TranscriptEntryMsg {
	return TranscriptEntryMsg{Type: TypeTranscriptEntry, CallID: callID, Entry: entry}
}

func NewLatencyUpdate(callID string, lat engine.LatencyInfo) LatencyUpdate {
	return LatencyUpdate{Type: TypeLatencyUpdate, CallID: callID, Latency: lat}
}

func NewFlowProgress(callID string, p tracker.Progress) FlowProgress {
	return FlowProgress{Type: TypeFlowProgress, CallID: callID, Progress: p}
}

func NewCallSummary(callID string, s summary.CallSummary) CallSummaryMsg {
	return CallSummaryMsg{Type: TypeCallSummary, CallID: callID, Summary: s}
}

func NewSystemEvent(callID, code, detail string) SystemEvent {
	return SystemEvent{Type: TypeSystemEvent, CallID: callID, Code: code, Detail: detail}
}

func NewErrorEvent(callID, code, detail string, retryable bool) ErrorEvent {
	return ErrorEvent{Type: TypeErrorEvent, CallID: callID, Code: code, Detail: detail, Retryable: retryable}
}

// ParseClientMessage decodes and validates one inbound UI message.
func ParseClientMessage(raw []byte) (ClientControl, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientControl{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != TypeClientControl {
		return ClientControl{}, ErrUnsupportedType
	}

	var msg ClientControl
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientControl{}, err
	}
	switch msg.Action {
	case ActionStartCall:
		if msg.PatientName == "" {
			return ClientControl{}, errors.New("start_call requires patient_name")
		}
	case ActionEndCall:
		if msg.CallID == "" {
			return ClientControl{}, errors.New("end_call requires call_id")
		}
	default:
		return ClientControl{}, fmt.Errorf("unknown control action %q", msg.Action)
	}
	return msg, nil
}
