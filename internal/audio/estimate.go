package audio

import "time"

const (
	// msPerChar approximates conversational speech rate on the synthesis
	// voices in use (empirically 70-90ms per character).
	msPerChar = 80

	estimateMin = 800 * time.Millisecond
	estimateMax = 12 * time.Second

	// goodbyeMin is the larger floor for the farewell: the service
	// signals "all bytes sent" well before the playback buffer drains,
	// and a hangup that truncates the goodbye is a correctness bug.
	goodbyeMin = 1500 * time.Millisecond
)

// EstimatePlayback approximates remaining playback time for an utterance
// of the given character count. This is the authoritative wait after
// response completion: the inbound model stream goes silent at
// send-complete, so input-side silence alone would release the mic (or
// hang up) while audio is still rendering. A SilenceWatcher wired to the
// decoded output may confirm completion earlier; it never extends the
// wait beyond this estimate's clamp.
func EstimatePlayback(chars int, goodbye bool) time.Duration {
	if chars < 0 {
		chars = 0
	}
	d := time.Duration(chars) * msPerChar * time.Millisecond
	min := estimateMin
	if goodbye {
		min = goodbyeMin
	}
	if d < min {
		return min
	}
	if d > estimateMax {
		return estimateMax
	}
	return d
}
