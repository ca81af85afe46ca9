package transcript

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// WriteJSON renders the transcript as a single JSON object with system and
// model metadata, run parameters, detected language, and a "transcription"
// array. In full mode each segment additionally carries its token array.
//
// The emitter is hand-rolled to preserve the format's exact byte contract:
// tab indentation, and string escaping limited to '"' and '\' — control
// characters are passed through untouched.
func WriteJSON(w io.Writer, t *Transcript, opts Options, full bool) error {
	bw := bufio.NewWriter(w)
	e := &jsonEmitter{w: bw}
	diarize := opts.diarizeActive()

	e.startObj("")
	e.valueStr("systeminfo", t.SystemInfo, false)
	e.startObj("model")
	e.valueStr("type", t.Model.Type, false)
	e.valueBool("multilingual", t.Model.Multilingual, true)
	e.endObj(false)
	e.startObj("params")
	e.valueStr("model", t.Params.ModelPath, false)
	e.valueStr("language", t.Params.Language, false)
	e.valueBool("translate", t.Params.Translate, true)
	e.endObj(false)
	e.startObj("result")
	e.valueStr("language", t.Language, true)
	e.endObj(false)
	e.startArr("transcription")

	for i, s := range t.Segments {
		e.startObj("")
		e.times(s.T0, s.T1, false)
		e.valueStr("text", s.Text, !diarize && !opts.TinyDiarize && !full)

		if full {
			e.startArr("tokens")
			for j, tok := range s.Tokens {
				e.startObj("")
				e.valueStr("text", tok.Text, false)
				if tok.T0 > -1 && tok.T1 > -1 {
					e.times(tok.T0, tok.T1, false)
				}
				e.valueInt("id", int64(tok.ID), false)
				e.valueFloat("p", tok.P, false)
				e.valueInt("t_dtw", tok.DTW, true)
				e.endObj(j == len(s.Tokens)-1)
			}
			e.endArr(!diarize && !opts.TinyDiarize)
		}

		if diarize {
			e.valueStr("speaker", SpeakerID(opts.Channels, opts.SampleRate, s.T0, s.T1), true)
		}
		if opts.TinyDiarize {
			e.valueBool("speaker_turn_next", s.SpeakerTurnNext, true)
		}
		e.endObj(i == len(t.Segments)-1)
	}

	e.endArr(true)
	e.endObj(true)
	return bw.Flush()
}

// jsonEmitter writes nested JSON with tab indentation and comma tracking
// driven explicitly by the caller's "end" flags.
type jsonEmitter struct {
	w      *bufio.Writer
	indent int
}

func (e *jsonEmitter) doIndent() {
	for i := 0; i < e.indent; i++ {
		e.w.WriteByte('\t')
	}
}

func (e *jsonEmitter) startObj(name string) {
	e.doIndent()
	if name != "" {
		e.w.WriteString(`"` + name + `": {` + "\n")
	} else {
		e.w.WriteString("{\n")
	}
	e.indent++
}

func (e *jsonEmitter) endObj(end bool) {
	e.indent--
	e.doIndent()
	if end {
		e.w.WriteString("}\n")
	} else {
		e.w.WriteString("},\n")
	}
}

func (e *jsonEmitter) startArr(name string) {
	e.doIndent()
	e.w.WriteString(`"` + name + `": [` + "\n")
	e.indent++
}

func (e *jsonEmitter) endArr(end bool) {
	e.indent--
	e.doIndent()
	if end {
		e.w.WriteString("]\n")
	} else {
		e.w.WriteString("],\n")
	}
}

func (e *jsonEmitter) startValue(name string) {
	e.doIndent()
	e.w.WriteString(`"` + name + `": `)
}

func (e *jsonEmitter) endValue(end bool) {
	if end {
		e.w.WriteByte('\n')
	} else {
		e.w.WriteString(",\n")
	}
}

func (e *jsonEmitter) valueStr(name, val string, end bool) {
	e.startValue(name)
	e.w.WriteString(`"` + escapeJSON(val) + `"`)
	e.endValue(end)
}

func (e *jsonEmitter) valueInt(name string, val int64, end bool) {
	e.startValue(name)
	e.w.WriteString(strconv.FormatInt(val, 10))
	e.endValue(end)
}

func (e *jsonEmitter) valueFloat(name string, val float32, end bool) {
	e.startValue(name)
	e.w.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	e.endValue(end)
}

func (e *jsonEmitter) valueBool(name string, val, end bool) {
	e.startValue(name)
	if val {
		e.w.WriteString("true")
	} else {
		e.w.WriteString("false")
	}
	e.endValue(end)
}

// times emits the paired "timestamps" (formatted) and "offsets"
// (milliseconds) objects for a tick range.
func (e *jsonEmitter) times(t0, t1 int64, end bool) {
	e.startObj("timestamps")
	e.valueStr("from", Timestamp(t0, true), false)
	e.valueStr("to", Timestamp(t1, true), true)
	e.endObj(false)
	e.startObj("offsets")
	e.valueInt("from", Milliseconds(t0), false)
	e.valueInt("to", Milliseconds(t1), true)
	e.endObj(end)
}

// escapeJSON escapes '"' and '\' with a backslash. Nothing else is
// escaped; that asymmetry with [escapeCSV] is part of each format's
// contract.
func escapeJSON(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
