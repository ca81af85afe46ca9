// Package whispercpp implements the recognizer boundary with the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/micscribe/pkg/recognizer"
	"github.com/MrWong99/micscribe/pkg/transcript"
)

// Compile-time assertion that Engine satisfies recognizer.Recognizer.
var _ recognizer.Recognizer = (*Engine)(nil)

// Engine is a whisper.cpp-backed [recognizer.Recognizer]. The model is
// loaded once at construction and shared across windows; each Recognize
// call runs on a fresh whisper context, which is what the bindings
// require for repeated inference.
type Engine struct {
	model     whisperlib.Model
	modelPath string

	mu   sync.Mutex
	lang string

	warnUnsupported sync.Once
}

// New loads the whisper.cpp model from modelPath. The caller must call
// Close when the engine is no longer needed.
func New(modelPath string) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	return &Engine{model: model, modelPath: modelPath}, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Info describes the loaded model.
func (e *Engine) Info() transcript.ModelInfo {
	return transcript.ModelInfo{
		Type:         modelType(e.modelPath),
		Multilingual: e.model.IsMultilingual(),
	}
}

// Language returns the language of the most recent window.
func (e *Engine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lang
}

// Recognize runs whisper.cpp over one window of 16 kHz mono float PCM and
// converts the engine's segments into the transcript data model.
func (e *Engine) Recognize(ctx context.Context, samples []float32, p recognizer.Params) ([]transcript.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whispercpp: context cancelled: %w", err)
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whispercpp: create context: %w", err)
	}

	lang := p.Language
	if p.DetectLanguage {
		lang = "auto"
	}
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			slog.Warn("whispercpp: failed to set language, using engine default",
				"language", lang, "error", err)
		}
	}
	wctx.SetTranslate(p.Translate)
	wctx.SetSplitOnWord(p.SplitOnWord)
	wctx.SetTokenTimestamps(p.TokenTimestamps)
	if p.Threads > 0 {
		wctx.SetThreads(uint(p.Threads))
	}
	if p.MaxSegmentLen > 0 {
		wctx.SetMaxSegmentLength(uint(p.MaxSegmentLen))
	}
	if p.WordThreshold > 0 {
		wctx.SetTokenThreshold(p.WordThreshold)
	}
	if p.InitialPrompt != "" {
		wctx.SetInitialPrompt(p.InitialPrompt)
	}
	if p.VAD.Enabled || p.SuppressNonSpeech {
		// The Go bindings do not expose these engine options yet; the
		// bundle stays pass-through so configs keep working once they do.
		e.warnUnsupported.Do(func() {
			slog.Warn("whispercpp: vad / non-speech suppression not supported by the bindings; ignored")
		})
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var segments []transcript.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whispercpp: read segment: %w", err)
		}

		out := transcript.Segment{
			Text:            seg.Text,
			T0:              ticks(seg.Start),
			T1:              ticks(seg.End),
			SpeakerTurnNext: seg.SpeakerTurnNext,
			Tokens:          make([]transcript.Token, 0, len(seg.Tokens)),
		}
		for _, tok := range seg.Tokens {
			t := transcript.Token{
				Text:    tok.Text,
				ID:      int(tok.Id),
				P:       tok.P,
				T0:      -1,
				T1:      -1,
				DTW:     -1,
				Special: !wctx.IsText(tok),
			}
			if p.TokenTimestamps {
				t.T0 = ticks(tok.Start)
				t.T1 = ticks(tok.End)
			}
			out.Tokens = append(out.Tokens, t)
		}
		segments = append(segments, out)
	}

	e.mu.Lock()
	if l := wctx.Language(); l != "" {
		e.lang = l
	} else {
		e.lang = p.Language
	}
	e.mu.Unlock()

	return segments, nil
}

// ticks converts a bindings duration to engine ticks (centiseconds).
func ticks(d time.Duration) int64 {
	return int64(d / (10 * time.Millisecond))
}

// modelType derives a short model identifier from its file name, e.g.
// "models/ggml-base.en.bin" → "base.en".
func modelType(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimPrefix(name, "ggml-")
}
