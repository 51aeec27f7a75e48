package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carevox/carevox/internal/audio"
	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/observability"
	"github.com/carevox/carevox/internal/realtime"
	"github.com/carevox/carevox/internal/reliability"
)

const (
	defaultKickoffDelay     = 200 * time.Millisecond
	defaultResponseDebounce = 400 * time.Millisecond

	// playbackTickInterval advances the silence watcher when the audio
	// stream has stopped delivering frames.
	playbackTickInterval = 100 * time.Millisecond
)

// Config tunes the engine's turn timing.
type Config struct {
	// KickoffDelay is the pause between session establishment and the
	// first response request, so the audio path settles before the
	// assistant opens the call.
	KickoffDelay time.Duration
	// ResponseDebounce is how long the caller's speech must stay stopped
	// before the engine commits the turn and requests a response. Speech
	// resuming inside this window cancels the commit.
	ResponseDebounce time.Duration
	// EstimatePlayback overrides the playback-length estimator. Nil uses
	// audio.EstimatePlayback.
	EstimatePlayback func(chars int, goodbye bool) time.Duration
}

func (c Config) withDefaults() Config {
	if c.KickoffDelay <= 0 {
		c.KickoffDelay = defaultKickoffDelay
	}
	if c.ResponseDebounce <= 0 {
		c.ResponseDebounce = defaultResponseDebounce
	}
	if c.EstimatePlayback == nil {
		c.EstimatePlayback = audio.EstimatePlayback
	}
	return c
}

// Engine owns one call's state machine. It is safe for concurrent use;
// all exported methods may be called from any goroutine.
type Engine struct {
	cfg     Config
	dialer  realtime.Dialer
	metrics *observability.Metrics
	cb      Callbacks

	mu             sync.Mutex
	status         Status
	session        realtime.Session
	transcript     []TranscriptEntry
	pendingUser    []string
	assistantBuf   strings.Builder
	assistantChars int
	responseActive bool
	sawFirstDelta  bool
	goodbyePending bool
	responseAt     time.Time
	lastSpeechStop time.Time
	latency        LatencyInfo
	watcher        *audio.SilenceWatcher
	debounce       *time.Timer
	debounceGen    int
	ended          bool
	endReason      string

	done chan struct{}
}

func New(cfg Config, dialer realtime.Dialer, metrics *observability.Metrics, cb Callbacks) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		dialer:  dialer,
		metrics: metrics,
		cb:      cb,
		status:  StatusIdle,
		done:    make(chan struct{}),
	}
}

// Start dials the realtime session, mutes the mic, and launches the
// event loop. After KickoffDelay the engine requests the first response
// so the assistant speaks first. The mic stays muted from connect
// through the kickoff so early line noise cannot preempt the greeting.
func (e *Engine) Start(ctx context.Context, req realtime.DialRequest) error {
	e.setStatus(StatusConnecting)

	sess, err := e.dialer.Dial(ctx, req)
	if err != nil {
		e.mu.Lock()
		e.status = StatusError
		e.ended = true
		e.endReason = "connect failed"
		e.mu.Unlock()
		if e.cb.OnError != nil {
			e.cb.OnError(err)
		}
		e.emitStatus(StatusError)
		close(e.done)
		return fmt.Errorf("dial realtime session: %w", err)
	}

	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()

	e.metrics.ActiveCalls.Inc()
	e.metrics.CallEvents.WithLabelValues("started").Inc()
	e.setStatus(StatusConnected)

	if err := sess.SetMicEnabled(ctx, false); err != nil {
		log.Printf("engine: initial mic mute failed: %v", err)
	}

	go e.run(ctx)
	time.AfterFunc(e.cfg.KickoffDelay, func() { e.kickoff(ctx) })
	return nil
}

func (e *Engine) run(ctx context.Context) {
	events := e.session.Events()
	for {
		select {
		case <-ctx.Done():
			e.terminate("context cancelled", nil)
			return
		case evt, ok := <-events:
			if !ok {
				e.terminate("connection closed", nil)
				return
			}
			e.handle(ctx, evt)
		}
	}
}

func (e *Engine) kickoff(ctx context.Context) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	sess := e.session
	e.mu.Unlock()

	if err := sess.CreateResponse(ctx); err != nil {
		e.terminate("kickoff failed", fmt.Errorf("kickoff response request: %w", err))
	}
}

func (e *Engine) handle(ctx context.Context, evt realtime.ServerEvent) {
	switch evt.Kind {
	case realtime.KindSessionCreated, realtime.KindSessionUpdated:
		// Session lifecycle acks carry no state the engine tracks.
	case realtime.KindSpeechStarted:
		e.onSpeechStarted()
	case realtime.KindSpeechStopped:
		e.onSpeechStopped(ctx)
	case realtime.KindResponseCreated:
		e.onResponseCreated(ctx)
	case realtime.KindTranscriptDelta:
		e.onTranscriptDelta(evt.Delta)
	case realtime.KindAudioDelta:
		e.onAudioDelta(evt.AudioBase64)
	case realtime.KindInputTranscriptionDone:
		e.onInputTranscription(evt.Transcript)
	case realtime.KindTranscriptDone:
		e.onTranscriptDone(evt.Transcript)
	case realtime.KindResponseDone:
		e.onResponseDone(ctx)
	case realtime.KindError:
		e.onProviderError(evt)
	}
}

// onSpeechStarted handles the caller resuming speech. While a response
// is in flight the mic is gated, so residual speech events are ignored
// rather than treated as barge-in.
func (e *Engine) onSpeechStarted() {
	e.mu.Lock()
	if e.ended || e.responseActive {
		e.mu.Unlock()
		return
	}
	cancelled := e.cancelDebounceLocked()
	e.status = StatusUserSpeaking
	e.mu.Unlock()

	if cancelled {
		e.metrics.ObserveIndicator("debounce_cancelled")
	}
	e.metrics.CallEvents.WithLabelValues("speech_started").Inc()
	e.emitStatus(StatusUserSpeaking)
}

func (e *Engine) onSpeechStopped(ctx context.Context) {
	e.mu.Lock()
	if e.ended || e.responseActive {
		e.mu.Unlock()
		return
	}
	e.lastSpeechStop = time.Now()
	e.status = StatusProcessing
	e.debounceGen++
	gen := e.debounceGen
	e.debounce = time.AfterFunc(e.cfg.ResponseDebounce, func() {
		e.commitTurn(ctx, gen)
	})
	e.mu.Unlock()

	e.metrics.CallEvents.WithLabelValues("speech_stopped").Inc()
	e.emitStatus(StatusProcessing)
}

// commitTurn fires once the debounce window elapses without speech
// resuming: gate the mic, then ask for a response.
func (e *Engine) commitTurn(ctx context.Context, gen int) {
	e.mu.Lock()
	if e.ended || gen != e.debounceGen {
		e.mu.Unlock()
		return
	}
	sess := e.session
	e.mu.Unlock()

	if err := sess.SetMicEnabled(ctx, false); err != nil {
		log.Printf("engine: mic mute failed: %v", err)
	}
	if err := sess.CreateResponse(ctx); err != nil {
		e.terminate("turn commit failed", fmt.Errorf("response request: %w", err))
	}
}

func (e *Engine) onResponseCreated(ctx context.Context) {
	now := time.Now()

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.cancelDebounceLocked()
	e.responseActive = true
	e.sawFirstDelta = false
	e.assistantBuf.Reset()
	e.assistantChars = 0
	e.watcher = audio.NewSilenceWatcher()
	e.responseAt = now
	e.status = StatusProcessing

	var turn time.Duration
	haveTurn := false
	if !e.lastSpeechStop.IsZero() {
		turn = now.Sub(e.lastSpeechStop)
		haveTurn = true
		e.lastSpeechStop = time.Time{}
		e.latency.observe(turn)
	}
	lat := e.latency
	sess := e.session
	e.mu.Unlock()

	// The service may start a response it decided on itself; keep the
	// mic gate closed either way.
	if err := sess.SetMicEnabled(ctx, false); err != nil {
		log.Printf("engine: mic mute failed: %v", err)
	}

	e.metrics.CallEvents.WithLabelValues("response_created").Inc()
	if haveTurn {
		e.metrics.ObserveTurnLatency(turn)
		if e.cb.OnLatency != nil {
			e.cb.OnLatency(lat)
		}
	}
	e.emitStatus(StatusProcessing)
}

func (e *Engine) onTranscriptDelta(delta string) {
	now := time.Now()

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	var flushed []TranscriptEntry
	first := false
	if !e.sawFirstDelta {
		e.sawFirstDelta = true
		first = true
		flushed = e.flushPendingLocked(now)
		e.status = StatusAssistantSpeaking
	}
	e.assistantBuf.WriteString(delta)
	sinceResponse := now.Sub(e.responseAt)
	e.mu.Unlock()

	for _, entry := range flushed {
		e.emitTranscript(entry)
	}
	if first {
		e.metrics.ObserveStage("response_to_first_delta", sinceResponse)
		e.emitStatus(StatusAssistantSpeaking)
	}
}

func (e *Engine) onAudioDelta(encoded string) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Printf("engine: dropping undecodable audio chunk: %v", err)
		return
	}

	e.mu.Lock()
	w := e.watcher
	e.mu.Unlock()
	if w == nil {
		return
	}
	w.Observe(audio.DecodePCM16LE(raw), time.Now())
}

// onInputTranscription buffers the caller's finalized utterance. Entries
// flush ahead of the assistant reply so transcript order follows the
// conversation even when transcription lands late.
func (e *Engine) onInputTranscription(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.pendingUser = append(e.pendingUser, text)
	e.mu.Unlock()
}

func (e *Engine) onTranscriptDone(text string) {
	now := time.Now()

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	if strings.TrimSpace(text) == "" {
		text = e.assistantBuf.String()
	}
	text = strings.TrimSpace(text)
	e.assistantBuf.Reset()

	entries := e.flushPendingLocked(now)
	if text != "" {
		e.assistantChars = len(text)
		entry := newEntry(RoleAssistant, text, now)
		e.transcript = append(e.transcript, entry)
		entries = append(entries, entry)
		if flow.ContainsFinalPhrase(text) {
			e.goodbyePending = true
		}
	}
	goodbye := e.goodbyePending
	e.mu.Unlock()

	for _, entry := range entries {
		e.emitTranscript(entry)
	}
	if goodbye {
		e.metrics.ObserveIndicator("goodbye_detected")
	}
}

func (e *Engine) onResponseDone(ctx context.Context) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	w := e.watcher
	chars := e.assistantChars
	goodbye := e.goodbyePending
	responseAt := e.responseAt
	e.mu.Unlock()

	e.metrics.CallEvents.WithLabelValues("response_done").Inc()
	go e.awaitPlayback(ctx, w, chars, goodbye, responseAt)
}

// awaitPlayback holds the turn open until assistant audio has actually
// finished rendering. The length-based estimate is the authoritative
// wait; the silence watcher may confirm completion earlier, never later.
func (e *Engine) awaitPlayback(ctx context.Context, w *audio.SilenceWatcher, chars int, goodbye bool, responseAt time.Time) {
	wait := e.cfg.EstimatePlayback(chars, goodbye)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(playbackTickInterval)
	defer ticker.Stop()

	start := time.Now()
	var confirmed <-chan struct{}
	if w != nil {
		confirmed = w.Done()
	}

wait:
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-timer.C:
			break wait
		case <-confirmed:
			// A watcher that never heard audio confirms nothing; fall
			// back to the estimate.
			if w.SawAudio() {
				break wait
			}
			confirmed = nil
		case t := <-ticker.C:
			if w != nil {
				w.Tick(t)
			}
		}
	}

	e.metrics.ObserveStage("response_to_playback_end", time.Since(start))
	if !responseAt.IsZero() {
		e.metrics.ObserveStage("turn_total", time.Since(responseAt))
	}
	e.finishTurn(ctx, goodbye)
}

func (e *Engine) finishTurn(ctx context.Context, goodbye bool) {
	if goodbye {
		e.metrics.CallEvents.WithLabelValues("goodbye_hangup").Inc()
		e.terminate("assistant closed the call", nil)
		return
	}

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.responseActive = false
	e.watcher = nil
	e.status = StatusListening
	sess := e.session
	e.mu.Unlock()

	if err := sess.SetMicEnabled(ctx, true); err != nil {
		log.Printf("engine: mic unmute failed: %v", err)
	}
	e.emitStatus(StatusListening)
}

func (e *Engine) onProviderError(evt realtime.ServerEvent) {
	code := evt.ErrCode
	if code == "" {
		code = "unknown"
	}
	e.metrics.ProviderErrors.WithLabelValues("realtime", code).Inc()
	e.terminate("provider error", &ProviderError{
		Code:      code,
		Message:   evt.ErrMessage,
		Retryable: reliability.IsRetryableRealtimeMessageType(code),
	})
}

// End finishes the call. Safe to call repeatedly and from any goroutine;
// only the first call has any effect.
func (e *Engine) End(reason string) {
	e.terminate(reason, nil)
}

func (e *Engine) terminate(reason string, failErr error) {
	now := time.Now()

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.endReason = reason
	e.cancelDebounceLocked()

	entries := e.flushPendingLocked(now)
	sysEntry := newEntry(RoleSystem, "Call ended", now)
	e.transcript = append(e.transcript, sysEntry)
	entries = append(entries, sysEntry)

	if failErr != nil {
		e.status = StatusError
	} else {
		e.status = StatusEnded
	}
	st := e.status
	sess := e.session
	e.mu.Unlock()

	log.Printf("engine: call ended (%s)", reason)
	if failErr != nil && e.cb.OnError != nil {
		e.cb.OnError(failErr)
	}
	for _, entry := range entries {
		e.emitTranscript(entry)
	}
	e.emitStatus(st)

	if sess != nil {
		_ = sess.Close()
	}
	e.metrics.ActiveCalls.Dec()
	e.metrics.CallEvents.WithLabelValues("ended").Inc()
	close(e.done)
}

// Done is closed once the call has fully ended.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) EndReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endReason
}

// Transcript returns a copy of the entries emitted so far.
func (e *Engine) Transcript() []TranscriptEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscriptEntry, len(e.transcript))
	copy(out, e.transcript)
	return out
}

func (e *Engine) Latency() LatencyInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latency
}

func (e *Engine) cancelDebounceLocked() bool {
	e.debounceGen++
	if e.debounce == nil {
		return false
	}
	stopped := e.debounce.Stop()
	e.debounce = nil
	return stopped
}

func (e *Engine) flushPendingLocked(now time.Time) []TranscriptEntry {
	if len(e.pendingUser) == 0 {
		return nil
	}
	entries := make([]TranscriptEntry, 0, len(e.pendingUser))
	for _, text := range e.pendingUser {
		entry := newEntry(RoleUser, text, now)
		e.transcript = append(e.transcript, entry)
		entries = append(entries, entry)
	}
	e.pendingUser = nil
	return entries
}

func (e *Engine) setStatus(st Status) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.status = st
	e.mu.Unlock()
	e.emitStatus(st)
}

func (e *Engine) emitStatus(st Status) {
	if e.cb.OnStatus != nil {
		e.cb.OnStatus(st)
	}
}

func (e *Engine) emitTranscript(entry TranscriptEntry) {
	if e.cb.OnTranscript != nil {
		e.cb.OnTranscript(entry)
	}
}

func newEntry(role Role, text string, ts time.Time) TranscriptEntry {
	return TranscriptEntry{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: ts.UTC(),
	}
}
