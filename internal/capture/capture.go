// Package capture manages microphone audio acquisition and hands fixed-size
// windows of samples to a speech recognizer.
//
// The pipeline inside this package is:
//
//   - [Source] — a device-backed stream delivering interleaved float32 PCM
//     from an audio thread (the PortAudio adapter lives in portaudio.go).
//   - [Recorder] — accumulates the rolling recognition window plus the full
//     per-channel session log used for diarization and WAV export.
//   - [Dispatcher] — enforces single-flight recognition: at most one window
//     is inside the recognizer at a time, with a configurable policy for
//     windows that arrive while it is busy.
//   - [Controller] — the session loop tying the three together on a fixed
//     poll interval until cancellation or the session deadline.
package capture

import (
	"fmt"
)

// State describes the lifecycle of a capture session.
type State int32

const (
	// StateUninitialized means the audio backend has not been opened yet.
	StateUninitialized State = iota

	// StateOpen means the device stream is open but not yet delivering audio.
	StateOpen

	// StateStreaming means audio is flowing and windows are being dispatched.
	StateStreaming

	// StateStopped means the session has terminated and the stream is closed.
	StateStopped
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateOpen:
		return "OPEN"
	case StateStreaming:
		return "STREAMING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// DeviceInfo describes one audio input device as reported by the backend.
type DeviceInfo struct {
	// Index is the backend's device index, usable as the configured device.
	Index int

	// Name is the device's display name.
	Name string

	// HostAPI names the host audio API the device belongs to (e.g. "ALSA").
	HostAPI string

	// MaxInputChannels is the maximum number of capture channels.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate float64
}

// DeviceError wraps a backend failure for a specific device index so callers
// can tell device selection problems apart from stream failures.
type DeviceError struct {
	// Index is the requested device index; -1 means the default device.
	Index int

	// Err is the underlying backend error.
	Err error
}

func (e *DeviceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("capture: default input device: %v", e.Err)
	}
	return fmt.Sprintf("capture: input device %d: %v", e.Index, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Source is a live audio input stream. Implementations deliver interleaved
// float32 PCM to the callback passed to Start from their own audio thread;
// the callback must not block.
//
// The PortAudio-backed implementation is [PortAudioSource]; tests use fakes.
type Source interface {
	// Start begins delivering frames to fn until Stop is called.
	Start(fn func(in []float32)) error

	// Stop halts frame delivery. The stream can not be restarted.
	Stop() error

	// Close releases the underlying device.
	Close() error

	// Channels returns the number of interleaved channels delivered to fn.
	Channels() int

	// SampleRate returns the stream sample rate in Hz.
	SampleRate() int
}
