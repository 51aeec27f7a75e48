package audio

import (
	"sync"
	"time"
)

const (
	// silenceRMSThreshold separates speech from line noise on the decoded
	// output stream.
	silenceRMSThreshold = 0.01
	// silenceHold is how long sustained low energy must last, after
	// non-silence was observed, before playback counts as finished.
	silenceHold = 400 * time.Millisecond
	// silenceMaxWait bounds the watcher so a missing or stalled audio
	// graph can never hang the call teardown.
	silenceMaxWait = 15 * time.Second
)

// SilenceWatcher confirms end of playback by watching short-window RMS
// energy on the rendered output stream. It only reports completion after
// it has seen actual audio: a stream that never carried sound yields
// nothing and callers fall back to the length-based estimate.
type SilenceWatcher struct {
	mu          sync.Mutex
	sawAudio    bool
	lastAudioAt time.Time
	startedAt   time.Time
	done        chan struct{}
	closed      bool
}

func NewSilenceWatcher() *SilenceWatcher {
	return &SilenceWatcher{
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Observe feeds one decoded PCM frame to the watcher.
func (w *SilenceWatcher) Observe(samples []int16, now time.Time) {
	energy := RMS(samples)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if energy >= silenceRMSThreshold {
		w.sawAudio = true
		w.lastAudioAt = now
		return
	}
	if w.sawAudio && now.Sub(w.lastAudioAt) >= silenceHold {
		w.closed = true
		close(w.done)
	}
}

// Tick lets callers advance the silence clock when no frames arrive at
// all anymore (the stream ended); sustained absence of frames counts the
// same as sustained low energy.
func (w *SilenceWatcher) Tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.sawAudio && now.Sub(w.lastAudioAt) >= silenceHold {
		w.closed = true
		close(w.done)
		return
	}
	if now.Sub(w.startedAt) >= silenceMaxWait {
		w.closed = true
		close(w.done)
	}
}

// Done is closed once playback-end was confirmed or the max wait passed.
func (w *SilenceWatcher) Done() <-chan struct{} {
	return w.done
}

// SawAudio reports whether the watcher observed any non-silent frame.
func (w *SilenceWatcher) SawAudio() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sawAudio
}
