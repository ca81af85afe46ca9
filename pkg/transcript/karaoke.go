package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// WriteKaraoke renders a shell script that drives ffmpeg to produce a
// karaoke-style subtitle video: per segment a gray background line of all
// tokens, plus a highlighted foreground token and an underline marker,
// each gated to that token's own time window.
//
// The configured monospace font is required; when it cannot be opened the
// script is not written at all and [ErrFontNotFound] is returned.
func WriteKaraoke(w io.Writer, t *Transcript, opts Options) error {
	if err := checkFont(opts.FontPath); err != nil {
		return err
	}

	// Render into memory first so an interrupted render never leaves a
	// half-written script behind.
	var buf bytes.Buffer
	renderKaraoke(&buf, t, opts)
	_, err := w.Write(buf.Bytes())
	return err
}

func renderKaraoke(buf *bytes.Buffer, t *Transcript, opts Options) {
	font := opts.FontPath
	input := opts.AudioPath

	fmt.Fprintf(buf, "#!/bin/bash\n\n")
	fmt.Fprintf(buf, "ffmpeg -i %s -f lavfi -i color=size=1200x120:duration=%g:rate=25:color=black -vf \"",
		input, opts.AudioSeconds)

	for i, s := range t.Segments {
		if i > 0 {
			buf.WriteByte(',')
		}

		// Segment lead-in: an empty gray line anchors the overlay chain.
		fmt.Fprintf(buf, "drawtext=fontfile='%s':fontsize=24:fontcolor=gray:x=(w-text_w)/2:y=h/2:text='':enable='between(t,%g,%g)'",
			font, float64(s.T0)/100.0, float64(s.T0)/100.0)

		speaker := ""
		if opts.diarizeActive() {
			speaker = Speaker(opts.Channels, opts.SampleRate, s.T0, s.T1)
		}

		isFirst := true
		for j, tok := range s.Tokens {
			if tok.Special {
				continue
			}

			var txtBG, txtFG, txtUL strings.Builder
			if speaker != "" {
				txtBG.WriteString(speaker)
				txtFG.WriteString(speaker)
				txtUL.WriteString(`\ \ \ \ \ \ \ \ \ \ \ `)
			}
			txtBG.WriteString("> ")
			txtFG.WriteString("> ")
			txtUL.WriteString(`\ \ `)

			for k, tok2 := range s.Tokens {
				if tok2.Special {
					continue
				}
				txtBG.WriteString(tok2.Text)
				if k == j {
					for i := 0; i < len(tok2.Text); i++ {
						txtUL.WriteByte('_')
					}
					txtFG.WriteString(tok2.Text)
					txtFG.WriteByte('|')
				} else {
					for i := 0; i < len(tok2.Text); i++ {
						txtFG.WriteString(`\ `)
						txtUL.WriteString(`\ `)
					}
				}
			}

			bg := escapeDrawtext(txtBG.String())
			fg := escapeDrawtext(txtFG.String())

			if isFirst {
				fmt.Fprintf(buf, ",drawtext=fontfile='%s':fontsize=24:fontcolor=gray:x=(w-text_w)/2:y=h/2:text='%s':enable='between(t,%g,%g)'",
					font, bg, float64(s.T0)/100.0, float64(s.T1)/100.0)
				isFirst = false
			}

			fmt.Fprintf(buf, ",drawtext=fontfile='%s':fontsize=24:fontcolor=lightgreen:x=(w-text_w)/2+8:y=h/2:text='%s':enable='between(t,%g,%g)'",
				font, fg, float64(tok.T0)/100.0, float64(tok.T1)/100.0)
			fmt.Fprintf(buf, ",drawtext=fontfile='%s':fontsize=24:fontcolor=lightgreen:x=(w-text_w)/2+8:y=h/2+16:text='%s':enable='between(t,%g,%g)'",
				font, escapeDrawtext(txtUL.String()), float64(tok.T0)/100.0, float64(tok.T1)/100.0)
		}
	}

	fmt.Fprintf(buf, "\" -c:v libx264 -pix_fmt yuv420p -y %s.mp4\n", input)
	fmt.Fprintf(buf, "\n\necho \"Your video has been saved to %s.mp4\"\n", input)
	fmt.Fprintf(buf, "\necho \"  ffplay %s.mp4\"\n\n", input)
}

// escapeDrawtext neutralizes characters that would break the single-quoted
// ffmpeg drawtext value: ASCII apostrophes become typographic ones and
// double quotes are backslash-escaped.
func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, "'", "’")
	return strings.ReplaceAll(s, `"`, `\"`)
}
