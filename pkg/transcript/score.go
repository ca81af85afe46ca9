package transcript

import (
	"bufio"
	"io"
	"strconv"
)

// WriteScore dumps tab-separated "token\tprobability" pairs in token order
// within segment order. This is a decode-quality debugging aid, not a
// playback format.
func WriteScore(w io.Writer, t *Transcript) error {
	bw := bufio.NewWriter(w)
	for _, s := range t.Segments {
		for _, tok := range s.Tokens {
			bw.WriteString(tok.Text)
			bw.WriteByte('\t')
			bw.WriteString(strconv.FormatFloat(float64(tok.P), 'g', -1, 32))
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
