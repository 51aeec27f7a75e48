package audio

import (
	"testing"
	"time"
)

func pcmFrame(amplitude int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = amplitude
		if i%2 == 1 {
			out[i] = -amplitude
		}
	}
	return out
}

func TestDecodePCM16LE(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80, 0x42}
	samples := DecodePCM16LE(raw)
	if len(samples) != 3 {
		t.Fatalf("len(samples) = %d, want 3 (odd trailing byte dropped)", len(samples))
	}
	if samples[0] != 1 || samples[1] != -1 || samples[2] != -32768 {
		t.Fatalf("samples = %v, want [1 -1 -32768]", samples)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
	loud := RMS(pcmFrame(16000, 320))
	quiet := RMS(pcmFrame(50, 320))
	if loud <= quiet {
		t.Fatalf("RMS loud=%v <= quiet=%v, want louder frame to score higher", loud, quiet)
	}
	if quiet >= silenceRMSThreshold {
		t.Fatalf("RMS(quiet frame) = %v, want below silence threshold %v", quiet, silenceRMSThreshold)
	}
}

func TestDurationMS(t *testing.T) {
	// 16000 samples at 16kHz is one second.
	if got := DurationMS(32000, 16000); got != 1000 {
		t.Fatalf("DurationMS(32000, 16000) = %d, want 1000", got)
	}
	if got := DurationMS(100, 0); got != 0 {
		t.Fatalf("DurationMS with zero rate = %d, want 0", got)
	}
}

func TestSilenceWatcherConfirmsAfterHold(t *testing.T) {
	w := NewSilenceWatcher()
	now := time.Now()

	w.Observe(pcmFrame(16000, 320), now)
	if !w.SawAudio() {
		t.Fatalf("SawAudio() = false after loud frame")
	}

	w.Observe(pcmFrame(10, 320), now.Add(100*time.Millisecond))
	select {
	case <-w.Done():
		t.Fatalf("Done() closed before silence hold elapsed")
	default:
	}

	w.Observe(pcmFrame(10, 320), now.Add(silenceHold+50*time.Millisecond))
	select {
	case <-w.Done():
	default:
		t.Fatalf("Done() not closed after sustained silence")
	}
}

func TestSilenceWatcherNeverConfirmsWithoutAudio(t *testing.T) {
	w := NewSilenceWatcher()
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Observe(pcmFrame(5, 320), now.Add(time.Duration(i)*100*time.Millisecond))
	}
	select {
	case <-w.Done():
		t.Fatalf("Done() closed although no non-silent frame was ever observed")
	default:
	}
}

func TestSilenceWatcherMaxWait(t *testing.T) {
	w := NewSilenceWatcher()
	w.Tick(time.Now().Add(silenceMaxWait + time.Second))
	select {
	case <-w.Done():
	default:
		t.Fatalf("Done() not closed after max wait bound")
	}
}

func TestEstimatePlaybackClamps(t *testing.T) {
	if got := EstimatePlayback(2, false); got != estimateMin {
		t.Fatalf("EstimatePlayback(short) = %s, want floor %s", got, estimateMin)
	}
	if got := EstimatePlayback(100000, false); got != estimateMax {
		t.Fatalf("EstimatePlayback(huge) = %s, want cap %s", got, estimateMax)
	}
	if got := EstimatePlayback(50, false); got != 4*time.Second {
		t.Fatalf("EstimatePlayback(50 chars) = %s, want 4s at %dms/char", got, msPerChar)
	}
}

func TestEstimatePlaybackGoodbyeFloor(t *testing.T) {
	normal := EstimatePlayback(3, false)
	farewell := EstimatePlayback(3, true)
	if farewell <= normal {
		t.Fatalf("goodbye estimate %s <= normal %s, want larger farewell allowance", farewell, normal)
	}
	if farewell != goodbyeMin {
		t.Fatalf("EstimatePlayback(short goodbye) = %s, want %s", farewell, goodbyeMin)
	}
}
