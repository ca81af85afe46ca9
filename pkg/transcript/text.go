package transcript

import (
	"bufio"
	"io"
)

// WriteText renders one line per segment: the optional "(speaker N)"
// annotation followed by the segment text.
func WriteText(w io.Writer, t *Transcript, opts Options) error {
	bw := bufio.NewWriter(w)
	for _, s := range t.Segments {
		if opts.diarizeActive() {
			bw.WriteString(Speaker(opts.Channels, opts.SampleRate, s.T0, s.T1))
		}
		bw.WriteString(s.Text)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
