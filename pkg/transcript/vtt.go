package transcript

import (
	"bufio"
	"io"
)

// WriteVTT renders a WebVTT subtitle file: the "WEBVTT" header, then one
// cue per segment with dot-millisecond timestamps. With diarization the
// cue text is prefixed with a "<v SpeakerN>" voice tag.
func WriteVTT(w io.Writer, t *Transcript, opts Options) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("WEBVTT\n\n")

	for _, s := range t.Segments {
		bw.WriteString(Timestamp(s.T0, false))
		bw.WriteString(" --> ")
		bw.WriteString(Timestamp(s.T1, false))
		bw.WriteByte('\n')

		if opts.diarizeActive() {
			bw.WriteString("<v Speaker")
			bw.WriteString(SpeakerID(opts.Channels, opts.SampleRate, s.T0, s.T1))
			bw.WriteString(">")
		}
		bw.WriteString(s.Text)
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}
