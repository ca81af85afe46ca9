package transcript

import (
	"fmt"
	"io"
	"math"
)

// ansiColors is the probability color ramp for token-level console output,
// from low-confidence red through yellow to high-confidence green.
var ansiColors = []string{
	"\033[38;5;196m", "\033[38;5;202m", "\033[38;5;208m", "\033[38;5;214m", "\033[38;5;220m",
	"\033[38;5;226m", "\033[38;5;190m", "\033[38;5;154m", "\033[38;5;118m", "\033[38;5;82m",
}

const ansiReset = "\033[0m"

// SpeakerTurnMark is appended to a segment's console line when a tdrz
// model predicts a speaker change after it.
const SpeakerTurnMark = " [SPEAKER_TURN]"

// Printer streams recognized segments to a console as they arrive. It is
// the live-output counterpart of the file writers: same segment semantics,
// line-oriented instead of artifact-oriented.
type Printer struct {
	// Out is the destination, typically os.Stdout.
	Out io.Writer

	// Timestamps prefixes each line with "[t0 --> t1]".
	Timestamps bool

	// Colors renders tokens individually, tinted by decode probability.
	Colors bool

	// PrintSpecial includes special tokens in colorized output.
	PrintSpecial bool

	// Diarize annotates each line with the estimated speaker. Requires
	// Channels/SampleRate; degrades silently otherwise.
	Diarize bool

	// TinyDiarize appends [SpeakerTurnMark] on predicted speaker turns.
	TinyDiarize bool

	Channels   Channels
	SampleRate int
}

// Print writes one segment to Out.
func (p *Printer) Print(s Segment) {
	if p.Timestamps {
		fmt.Fprintf(p.Out, "[%s --> %s]  ", Timestamp(s.T0, false), Timestamp(s.T1, false))
	}

	speaker := ""
	if p.Diarize && len(p.Channels) == 2 {
		speaker = Speaker(p.Channels, p.SampleRate, s.T0, s.T1)
	}

	if p.Colors {
		for _, tok := range s.Tokens {
			if tok.Special && !p.PrintSpecial {
				continue
			}
			fmt.Fprintf(p.Out, "%s%s%s%s", speaker, colorFor(tok.P), tok.Text, ansiReset)
		}
	} else {
		fmt.Fprintf(p.Out, "%s%s", speaker, s.Text)
	}

	if p.TinyDiarize && s.SpeakerTurnNext {
		io.WriteString(p.Out, SpeakerTurnMark)
	}

	if p.Timestamps || p.Diarize {
		io.WriteString(p.Out, "\n")
	}
}

// colorFor maps a token probability to a ramp color. The cubic skew keeps
// mid-confidence tokens visibly warm.
func colorFor(p float32) string {
	i := int(math.Pow(float64(p), 3) * float64(len(ansiColors)))
	if i < 0 {
		i = 0
	}
	if i > len(ansiColors)-1 {
		i = len(ansiColors) - 1
	}
	return ansiColors[i]
}
