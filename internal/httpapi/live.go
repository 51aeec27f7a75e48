package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/carevox/carevox/internal/engine"
	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/policy"
	"github.com/carevox/carevox/internal/protocol"
	"github.com/carevox/carevox/internal/realtime"
	"github.com/carevox/carevox/internal/script"
	"github.com/carevox/carevox/internal/summary"
	"github.com/carevox/carevox/internal/tracker"
)

const subscriberQueueSize = 64

// liveCall bundles everything attached to one in-flight call: the
// engine, the flow tracker, the callback detector, and the fan-out to
// websocket subscribers.
type liveCall struct {
	id       string
	eng      *engine.Engine
	trk      *tracker.Tracker
	detector *summary.CallbackDetector
	flowMap  flow.FlowMap

	mu      sync.Mutex
	subs    map[chan any]struct{}
	summary *summary.CallSummary
}

// startCall builds and launches one call. The engine's callbacks drive
// the tracker and detector and fan out protocol messages to whatever UI
// connections are subscribed.
func (s *Server) startCall(req startCallRequest) (*liveCall, error) {
	flowMap := flow.Builtin()
	if req.Flow != nil {
		if err := flow.Validate(*req.Flow); err != nil {
			return nil, &validationError{code: "invalid_flow", msg: err.Error()}
		}
		flowMap = *req.Flow
	}
	language := req.Language
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	mode := req.Mode
	if mode == "" {
		mode = s.cfg.DefaultMode
	}

	call := s.registry.Create(req.PatientName, flowMap.Title, language, mode)
	lc := &liveCall{
		id:       call.ID,
		trk:      tracker.New(flowMap, s.matcher),
		detector: summary.NewCallbackDetector(),
		flowMap:  flowMap,
		subs:     make(map[chan any]struct{}),
	}

	lc.eng = engine.New(engine.Config{
		KickoffDelay:     s.cfg.KickoffDelay,
		ResponseDebounce: s.cfg.ResponseDebounce,
	}, s.dialer, s.metrics, engine.Callbacks{
		OnStatus: func(st engine.Status) {
			lc.broadcast(protocol.NewStatusUpdate(lc.id, st))
			_ = s.registry.Touch(lc.id)
		},
		OnTranscript: func(entry engine.TranscriptEntry) {
			lc.onTranscript(entry)
			_ = s.registry.Touch(lc.id)
		},
		OnLatency: func(lat engine.LatencyInfo) {
			lc.broadcast(protocol.NewLatencyUpdate(lc.id, lat))
		},
		OnError: func(err error) {
			retryable := false
			var pe *engine.ProviderError
			if errors.As(err, &pe) {
				retryable = pe.Retryable
			}
			lc.broadcast(protocol.NewErrorEvent(lc.id, "call_failed", err.Error(), retryable))
		},
	})

	prompt := script.Assemble(script.Params{
		Greeting:    req.Greeting,
		PatientName: req.PatientName,
		Language:    language,
		Mode:        mode,
		Flow:        flowMap,
	})

	// The call outlives the HTTP request that started it.
	if err := lc.eng.Start(context.Background(), realtime.DialRequest{
		PatientName:  req.PatientName,
		SystemPrompt: prompt,
		Voice:        s.cfg.RealtimeVoice,
		Mode:         mode,
	}); err != nil {
		_, _ = s.registry.End(call.ID)
		return nil, err
	}

	s.mu.Lock()
	s.live[call.ID] = lc
	s.mu.Unlock()

	go s.settleCall(lc)
	return lc, nil
}

// settleCall runs after the engine finishes: build the summary, push the
// final messages, and settle the registry record.
func (s *Server) settleCall(lc *liveCall) {
	<-lc.eng.Done()

	patientName := ""
	language := ""
	if call, err := s.registry.Get(lc.id); err == nil {
		patientName = call.PatientName
		language = call.Language
	}

	failed := lc.eng.Status() == engine.StatusError
	sum := s.summarizer.Summarize(context.Background(), summary.Input{
		PatientName:       patientName,
		Language:          language,
		Transcript:        lc.eng.Transcript(),
		Progress:          lc.trk.Progress(),
		CallbackRequested: lc.detector.Requested(),
		CallbackReasons:   lc.detector.Reasons(),
		Failed:            failed,
	})

	lc.mu.Lock()
	lc.summary = &sum
	lc.mu.Unlock()

	lc.broadcast(protocol.NewFlowProgress(lc.id, lc.trk.Progress()))
	lc.broadcast(protocol.NewCallSummary(lc.id, sum))
	lc.broadcast(protocol.NewSystemEvent(lc.id, "call_settled", lc.eng.EndReason()))

	if _, err := s.registry.End(lc.id); err != nil {
		log.Printf("httpapi: settle of unknown call %s: %v", lc.id, err)
	}
	s.metrics.CallEvents.WithLabelValues("settled").Inc()
}

// endLiveCall asks the engine to stop; settleCall does the rest.
func (s *Server) endLiveCall(id, reason string) {
	if lc := s.lookupLive(id); lc != nil {
		lc.eng.End(reason)
	}
}

func (s *Server) lookupLive(id string) *liveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[id]
}

// onTranscript feeds finalized entries to the tracker and callback
// detector, then fans the entry and fresh progress out to the UI.
func (lc *liveCall) onTranscript(entry engine.TranscriptEntry) {
	lc.broadcast(protocol.NewTranscriptEntry(lc.id, entry))

	switch entry.Role {
	case engine.RoleAssistant:
		lc.trk.ObserveAssistant(entry.Text)
		lc.detector.ObserveAssistant(entry.Text)
	case engine.RoleUser:
		record, matched := lc.trk.ObserveUser(context.Background(), entry.Text)
		if matched && record.TriggersCallback {
			lc.detector.Note(fmt.Sprintf("%s: patient answered %q", record.StepLabel, record.MatchedLabel))
		}
		if decision := policy.AssessUtterance(entry.Text); decision.RequestCallback {
			lc.detector.Note(decision.Reason)
			if decision.Urgent {
				lc.broadcast(protocol.NewSystemEvent(lc.id, "escalation", decision.Reason))
			}
		}
	default:
		return
	}
	lc.broadcast(protocol.NewFlowProgress(lc.id, lc.trk.Progress()))
}

// subscribe registers a UI connection. The returned channel is never
// closed by the broadcaster; callers drop it via unsubscribe.
func (lc *liveCall) subscribe() chan any {
	ch := make(chan any, subscriberQueueSize)
	lc.mu.Lock()
	lc.subs[ch] = struct{}{}
	lc.mu.Unlock()
	return ch
}

func (lc *liveCall) unsubscribe(ch chan any) {
	lc.mu.Lock()
	delete(lc.subs, ch)
	lc.mu.Unlock()
}

// broadcast fans a message out without ever blocking an engine
// callback; a subscriber that cannot keep up loses messages.
func (lc *liveCall) broadcast(msg any) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for ch := range lc.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (lc *liveCall) summarySnapshot() *summary.CallSummary {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.summary
}

// snapshotMessages replays current state to a fresh subscriber so a UI
// attaching mid-call starts consistent.
func (lc *liveCall) snapshotMessages() []any {
	msgs := []any{
		protocol.NewStatusUpdate(lc.id, lc.eng.Status()),
		protocol.NewFlowProgress(lc.id, lc.trk.Progress()),
	}
	for _, entry := range lc.eng.Transcript() {
		msgs = append(msgs, protocol.NewTranscriptEntry(lc.id, entry))
	}
	if sum := lc.summarySnapshot(); sum != nil {
		msgs = append(msgs, protocol.NewCallSummary(lc.id, *sum))
	}
	return msgs
}
