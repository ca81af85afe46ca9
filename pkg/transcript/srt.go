package transcript

import (
	"bufio"
	"io"
	"strconv"
)

// WriteSRT renders a SubRip subtitle file: a 1-based cue index (shifted by
// Options.SegmentOffset), comma-millisecond timestamps, the optional
// speaker annotation, and the text, with a blank line between cues.
func WriteSRT(w io.Writer, t *Transcript, opts Options) error {
	bw := bufio.NewWriter(w)
	for i, s := range t.Segments {
		bw.WriteString(strconv.Itoa(i + 1 + opts.SegmentOffset))
		bw.WriteByte('\n')
		bw.WriteString(Timestamp(s.T0, true))
		bw.WriteString(" --> ")
		bw.WriteString(Timestamp(s.T1, true))
		bw.WriteByte('\n')

		if opts.diarizeActive() {
			bw.WriteString(Speaker(opts.Channels, opts.SampleRate, s.T0, s.T1))
		}
		bw.WriteString(s.Text)
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}
