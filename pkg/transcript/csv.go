package transcript

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// WriteCSV renders one row per segment with millisecond start/end columns,
// an optional speaker column, and the text double-quote-escaped per
// RFC 4180. Only '"' is escaped (doubled); backslashes pass through.
func WriteCSV(w io.Writer, t *Transcript, opts Options) error {
	bw := bufio.NewWriter(w)
	diarize := opts.diarizeActive()

	bw.WriteString("start,end,")
	if diarize {
		bw.WriteString("speaker,")
	}
	bw.WriteString("text\n")

	for _, s := range t.Segments {
		bw.WriteString(strconv.FormatInt(Milliseconds(s.T0), 10))
		bw.WriteByte(',')
		bw.WriteString(strconv.FormatInt(Milliseconds(s.T1), 10))
		bw.WriteByte(',')
		if diarize {
			bw.WriteString(SpeakerID(opts.Channels, opts.SampleRate, s.T0, s.T1))
			bw.WriteByte(',')
		}
		bw.WriteByte('"')
		bw.WriteString(escapeCSV(s.Text))
		bw.WriteString("\"\n")
	}
	return bw.Flush()
}

// escapeCSV doubles every '"' per RFC 4180.
func escapeCSV(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
