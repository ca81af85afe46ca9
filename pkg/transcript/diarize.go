package transcript

import "math"

// ambiguityRatio is the margin one channel's energy must exceed the other's
// by before a speaker is assigned. Within the margin the range is treated
// as overlap/ambiguous.
const ambiguityRatio = 1.1

// SpeakerID estimates which of two channels carries the dominant voice over
// the tick range [t0, t1] by comparing summed absolute sample energy.
// It returns "0" or "1" for a clear winner and "?" when the energies are
// within 10% of each other. When ch does not hold exactly two channels the
// estimate degrades silently and the empty string is returned.
func SpeakerID(ch Channels, sampleRate int, t0, t1 int64) string {
	if len(ch) != 2 {
		return ""
	}

	n := int64(len(ch[0]))
	is0 := tickToSample(t0, n, sampleRate)
	is1 := tickToSample(t1, n, sampleRate)

	var energy0, energy1 float64
	for j := is0; j < is1; j++ {
		energy0 += math.Abs(float64(ch[0][j]))
		energy1 += math.Abs(float64(ch[1][j]))
	}

	switch {
	case energy0 > ambiguityRatio*energy1:
		return "0"
	case energy1 > ambiguityRatio*energy0:
		return "1"
	default:
		return "?"
	}
}

// Speaker returns the plain-text speaker annotation "(speaker N)" for the
// given range, or the empty string when diarization is unavailable.
func Speaker(ch Channels, sampleRate int, t0, t1 int64) string {
	id := SpeakerID(ch, sampleRate, t0, t1)
	if id == "" {
		return ""
	}
	return "(speaker " + id + ")"
}

// tickToSample converts a tick value to a sample index, clamped to [0, n].
func tickToSample(t, n int64, sampleRate int) int64 {
	i := t * int64(sampleRate) / TickRate
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
