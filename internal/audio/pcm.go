// Package audio contains the PCM helpers the engine uses to decide when
// assistant audio has actually finished playing, as opposed to merely
// having been sent by the speech service.
package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16LE converts raw little-endian PCM16 mono bytes into samples.
// A trailing odd byte is dropped.
func DecodePCM16LE(raw []byte) []int16 {
	n := len(raw) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples
}

// RMS computes the root-mean-square energy of a PCM16 frame, normalized
// to [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Duration of a PCM16LE mono payload in milliseconds at the given rate.
func DurationMS(rawLen, sampleRate int) int64 {
	if sampleRate <= 0 || rawLen <= 0 {
		return 0
	}
	samples := rawLen / 2
	return int64(samples) * 1000 / int64(sampleRate)
}
