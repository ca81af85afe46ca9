package transcript_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/micscribe/pkg/transcript"
)

func sampleTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		SystemInfo: "test",
		Model:      transcript.ModelInfo{Type: "base.en", Multilingual: false},
		Params:     transcript.RunInfo{ModelPath: "models/ggml-base.en.bin", Language: "en"},
		Language:   "en",
		Segments: []transcript.Segment{
			{
				Text: " Hello world.", T0: 0, T1: 150,
				Tokens: []transcript.Token{
					{Text: " Hello", ID: 1, P: 0.9, T0: 0, T1: 80, DTW: -1},
					{Text: " world.", ID: 2, P: 0.8, T0: 80, T1: 150, DTW: -1},
				},
			},
			{
				Text: " Second line.", T0: 150, T1: 420,
				Tokens: []transcript.Token{
					{Text: " Second line.", ID: 3, P: 0.7, T0: 150, T1: 420, DTW: -1},
				},
			},
		},
	}
}

func render(t *testing.T, f transcript.Format, tr *transcript.Transcript, opts transcript.Options) string {
	t.Helper()
	var sb strings.Builder
	if err := transcript.Write(&sb, f, tr, opts); err != nil {
		t.Fatalf("Write(%s): %v", f, err)
	}
	return sb.String()
}

func TestWriteText(t *testing.T) {
	got := render(t, transcript.FormatText, sampleTranscript(), transcript.Options{})
	want := " Hello world.\n Second line.\n"
	if got != want {
		t.Errorf("text output = %q, want %q", got, want)
	}
}

func TestWriteVTT(t *testing.T) {
	got := render(t, transcript.FormatVTT, sampleTranscript(), transcript.Options{})
	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.500\n Hello world.\n\n" +
		"00:00:01.500 --> 00:00:04.200\n Second line.\n\n"
	if got != want {
		t.Errorf("vtt output = %q, want %q", got, want)
	}
}

// TestWriteVTTDiarized covers the stereo scenario: channel 0 loud,
// channel 1 silent, so the first cue must carry the Speaker0 voice tag.
func TestWriteVTTDiarized(t *testing.T) {
	const rate = 16000
	opts := transcript.Options{
		Diarize:    true,
		SampleRate: rate,
		Channels:   channelPair(5*rate, 1.0, 0.0),
	}
	got := render(t, transcript.FormatVTT, sampleTranscript(), opts)
	if !strings.Contains(got, "<v Speaker0> Hello world.") {
		t.Errorf("diarized vtt output missing voice tag:\n%s", got)
	}
}

func TestWriteSRT(t *testing.T) {
	got := render(t, transcript.FormatSRT, sampleTranscript(), transcript.Options{SegmentOffset: 4})
	want := "5\n00:00:00,000 --> 00:00:01,500\n Hello world.\n\n" +
		"6\n00:00:01,500 --> 00:00:04,200\n Second line.\n\n"
	if got != want {
		t.Errorf("srt output = %q, want %q", got, want)
	}
}

func TestWriteCSV(t *testing.T) {
	tr := sampleTranscript()
	tr.Segments = tr.Segments[:1]
	tr.Segments[0].Text = `hello "world"`

	got := render(t, transcript.FormatCSV, tr, transcript.Options{})
	want := "start,end,text\n0,1500,\"hello \"\"world\"\"\"\n"
	if got != want {
		t.Errorf("csv output = %q, want %q", got, want)
	}

	// RFC 4180 round trip: the stdlib reader must recover the original.
	rec, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if rec[1][2] != `hello "world"` {
		t.Errorf("csv round trip = %q, want %q", rec[1][2], `hello "world"`)
	}
}

func TestWriteJSONEscaping(t *testing.T) {
	tr := sampleTranscript()
	tr.Segments = tr.Segments[:1]
	tr.Segments[0].Text = `hello "world" \ end`

	got := render(t, transcript.FormatJSON, tr, transcript.Options{})
	if !strings.Contains(got, `"text": "hello \"world\" \\ end"`) {
		t.Errorf("json output missing escaped text:\n%s", got)
	}

	// The emitted document must parse, and the string must round trip
	// byte-for-byte.
	var doc struct {
		Transcription []struct {
			Text    string `json:"text"`
			Offsets struct {
				From int64 `json:"from"`
				To   int64 `json:"to"`
			} `json:"offsets"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal([]byte(got), &doc); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if doc.Transcription[0].Text != `hello "world" \ end` {
		t.Errorf("json round trip = %q", doc.Transcription[0].Text)
	}
	if doc.Transcription[0].Offsets.From != 0 || doc.Transcription[0].Offsets.To != 1500 {
		t.Errorf("json offsets = %+v, want 0/1500", doc.Transcription[0].Offsets)
	}
}

func TestWriteJSONFullTokens(t *testing.T) {
	got := render(t, transcript.FormatJSONFull, sampleTranscript(), transcript.Options{})
	for _, want := range []string{`"tokens": [`, `"id": 1`, `"p": 0.9`, `"t_dtw": -1`} {
		if !strings.Contains(got, want) {
			t.Errorf("json-full output missing %q:\n%s", want, got)
		}
	}
	// Plain mode must not carry tokens.
	plain := render(t, transcript.FormatJSON, sampleTranscript(), transcript.Options{})
	if strings.Contains(plain, `"tokens"`) {
		t.Errorf("plain json output unexpectedly contains tokens:\n%s", plain)
	}
}

func TestWriteLRC(t *testing.T) {
	got := render(t, transcript.FormatLRC, sampleTranscript(), transcript.Options{})
	want := "[by:micscribe]\n[00:00.00] Hello world.\n[00:01.50] Second line.\n"
	if got != want {
		t.Errorf("lrc output = %q, want %q", got, want)
	}
}

func TestWriteScore(t *testing.T) {
	got := render(t, transcript.FormatScore, sampleTranscript(), transcript.Options{})
	want := " Hello\t0.9\n world.\t0.8\n Second line.\t0.7\n"
	if got != want {
		t.Errorf("score output = %q, want %q", got, want)
	}
}

func TestWriteKaraoke(t *testing.T) {
	// Any readable file works as a "font" for the existence probe.
	font := filepath.Join(t.TempDir(), "mono.ttf")
	if err := os.WriteFile(font, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := transcript.Options{FontPath: font, AudioPath: "session.wav", AudioSeconds: 4.2}
	got := render(t, transcript.FormatKaraoke, sampleTranscript(), opts)

	if !strings.HasPrefix(got, "#!/bin/bash\n") {
		t.Errorf("karaoke script missing shebang:\n%s", got[:40])
	}
	for _, want := range []string{
		"ffmpeg -i session.wav",
		"duration=4.2",
		"drawtext=fontfile='" + font + "'",
		"enable='between(t,0,1.5)'",
		"-y session.wav.mp4",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("karaoke script missing %q", want)
		}
	}
}

func TestWriteKaraokeMissingFont(t *testing.T) {
	var sb strings.Builder
	opts := transcript.Options{FontPath: filepath.Join(t.TempDir(), "absent.ttf")}
	err := transcript.WriteKaraoke(&sb, sampleTranscript(), opts)
	if err == nil {
		t.Fatal("expected error for missing font")
	}
	if sb.Len() != 0 {
		t.Errorf("partial script written despite missing font: %q", sb.String())
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")

	path, err := transcript.WriteFile(base, transcript.FormatSRT, sampleTranscript(), transcript.Options{})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if path != base+".srt" {
		t.Errorf("path = %q, want %q", path, base+".srt")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not created: %v", err)
	}
}

// TestWriteFileKaraokeNoPartial checks the missing-font failure leaves no
// file behind.
func TestWriteFileKaraokeNoPartial(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")

	_, err := transcript.WriteFile(base, transcript.FormatKaraoke, sampleTranscript(),
		transcript.Options{FontPath: filepath.Join(dir, "absent.ttf")})
	if err == nil {
		t.Fatal("expected error for missing font")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no artifacts, found %d", len(entries))
	}
}

func TestFormatValidity(t *testing.T) {
	for _, f := range transcript.Formats {
		if !f.IsValid() {
			t.Errorf("Format %q unexpectedly invalid", f)
		}
	}
	if transcript.Format("midi").IsValid() {
		t.Error("Format \"midi\" unexpectedly valid")
	}
}
