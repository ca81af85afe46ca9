package capture

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Compile-time assertion that the PortAudio adapter satisfies Source.
var _ Source = (*PortAudioSource)(nil)

// Init initialises the PortAudio backend. It must be called once before any
// device enumeration or stream open, paired with a deferred [Shutdown].
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: initialize portaudio: %w", err)
	}
	return nil
}

// Shutdown tears down the PortAudio backend.
func Shutdown() error {
	return portaudio.Terminate()
}

// ListDevices enumerates all input-capable devices. The returned Index values
// are valid arguments for [OpenSource].
func ListDevices() ([]DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	var out []DeviceInfo
	for i, d := range devs {
		if d.MaxInputChannels <= 0 {
			continue
		}
		info := DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

// PortAudioSource is a [Source] backed by a PortAudio input stream.
type PortAudioSource struct {
	stream     *portaudio.Stream
	device     *portaudio.DeviceInfo
	channels   int
	sampleRate int
	fn         func(in []float32)
}

// OpenSource opens an input stream on the device with the given index;
// deviceIndex -1 selects the system default. When the indexed device cannot
// be used the default device is tried as a fallback before giving up.
func OpenSource(deviceIndex, channels, sampleRate, framesPerBuffer int) (*PortAudioSource, error) {
	dev, err := pickDevice(deviceIndex)
	if err != nil {
		return nil, err
	}

	if dev.MaxInputChannels < channels {
		return nil, &DeviceError{Index: deviceIndex,
			Err: fmt.Errorf("device %q has %d input channels, need %d", dev.Name, dev.MaxInputChannels, channels)}
	}

	src := &PortAudioSource{
		device:     dev,
		channels:   channels,
		sampleRate: sampleRate,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, src.callback)
	if err != nil {
		return nil, &DeviceError{Index: deviceIndex,
			Err: fmt.Errorf("open stream on %q: %w", dev.Name, err)}
	}
	src.stream = stream

	slog.Info("input device opened",
		"device", dev.Name,
		"channels", channels,
		"sample_rate", sampleRate,
		"frames_per_buffer", framesPerBuffer)
	return src, nil
}

// pickDevice resolves a device index to a PortAudio device, falling back to
// the default input device for out-of-range indexes.
func pickDevice(deviceIndex int) (*portaudio.DeviceInfo, error) {
	if deviceIndex < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, &DeviceError{Index: -1, Err: err}
		}
		return dev, nil
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Index: deviceIndex, Err: err}
	}
	if deviceIndex >= len(devs) || devs[deviceIndex].MaxInputChannels <= 0 {
		slog.Warn("configured device not usable for input, falling back to default",
			"device_index", deviceIndex)
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, &DeviceError{Index: deviceIndex, Err: err}
		}
		return dev, nil
	}
	return devs[deviceIndex], nil
}

// callback runs on the PortAudio audio thread.
func (s *PortAudioSource) callback(in []float32) {
	if s.fn != nil {
		s.fn(in)
	}
}

// Start begins audio delivery to fn.
func (s *PortAudioSource) Start(fn func(in []float32)) error {
	s.fn = fn
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("capture: start stream: %w", err)
	}
	return nil
}

// Stop halts audio delivery.
func (s *PortAudioSource) Stop() error {
	return s.stream.Stop()
}

// Close releases the stream.
func (s *PortAudioSource) Close() error {
	return s.stream.Close()
}

// Channels returns the number of interleaved channels.
func (s *PortAudioSource) Channels() int { return s.channels }

// SampleRate returns the stream sample rate in Hz.
func (s *PortAudioSource) SampleRate() int { return s.sampleRate }

// DeviceName returns the display name of the opened device.
func (s *PortAudioSource) DeviceName() string { return s.device.Name }
