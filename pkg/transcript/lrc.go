package transcript

import (
	"bufio"
	"io"
)

// WriteLRC renders an LRC lyric file: a "[by:...]" attribution header,
// then one "[MM:SS.cc]" line per segment using only the start time.
func WriteLRC(w io.Writer, t *Transcript, opts Options) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("[by:" + Tool + "]\n")

	for _, s := range t.Segments {
		bw.WriteByte('[')
		bw.WriteString(lrcTimestamp(s.T0))
		bw.WriteByte(']')
		if opts.diarizeActive() {
			bw.WriteString(Speaker(opts.Channels, opts.SampleRate, s.T0, s.T1))
		}
		bw.WriteString(s.Text)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
