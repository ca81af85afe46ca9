package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/MrWong99/micscribe/pkg/transcript"
)

// WriteWAV writes the session recording as a 16-bit PCM RIFF/WAVE file,
// interleaving the per-channel logs. Channels of uneven length are truncated
// to the shortest one.
func WriteWAV(w io.Writer, ch transcript.Channels, sampleRate int) error {
	if len(ch) == 0 {
		return fmt.Errorf("capture: no channel data to export")
	}
	frames := len(ch[0])
	for _, c := range ch[1:] {
		if len(c) < frames {
			frames = len(c)
		}
	}

	channels := len(ch)
	dataSize := frames * channels * 2
	byteRate := sampleRate * channels * 2

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("capture: write wav header: %w", err)
	}

	buf := make([]byte, channels*2)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(buf[c*2:], uint16(pcm16(ch[c][f])))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("capture: write wav data: %w", err)
		}
	}
	return nil
}

// ExportWAV writes the session recording to the given path.
func ExportWAV(path string, ch transcript.Channels, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteWAV(f, ch, sampleRate); err != nil {
		return err
	}
	return f.Close()
}

// pcm16 converts a float sample in [-1, 1] to a signed 16-bit value,
// clamping out-of-range input.
func pcm16(s float32) int16 {
	v := float64(s) * 32767
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
