// SPDX-License-Identifier: EPL-2.0

package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/kitchensink-io/kitchensink/audio"
)

// DefaultCaptureBlocksize is the frames-per-chunk used when neither the
// config nor the sink expresses a preference.
const DefaultCaptureBlocksize = 1024

// CaptureConfig configures a CaptureSource.
type CaptureConfig struct {
	// Format of the capture stream. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize is the frames per chunk to request from the device.
	// 0 adopts the sink's preference, falling back to
	// DefaultCaptureBlocksize.
	Blocksize int

	// Device selects the input device by (substring) name. Empty falls
	// back to the KS_INPUT_DEVICE environment variable, then to the
	// system default.
	Device string

	// OnDisconnect, if set, is invoked once when capture stops.
	OnDisconnect func()

	Logger *slog.Logger
}

// CaptureSource captures audio from a local line-in/microphone and pushes
// each device buffer to the sink as a chunk.
type CaptureSource struct {
	sink   audio.Sink
	cfg    CaptureConfig
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

// NewCaptureSource builds a capture source feeding sink.
func NewCaptureSource(sink audio.Sink, cfg CaptureConfig) (*CaptureSource, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	cfg.Blocksize = audio.NegotiateBlocksize(cfg.Blocksize, sink, DefaultCaptureBlocksize)
	if cfg.Device == "" {
		cfg.Device = os.Getenv(EnvInputDevice)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &CaptureSource{sink: sink, cfg: cfg, logger: cfg.Logger}, nil
}

// Format returns the capture format.
func (s *CaptureSource) Format() audio.Format { return s.cfg.Format }

// Blocksize returns the negotiated frames per chunk.
func (s *CaptureSource) Blocksize() int { return s.cfg.Blocksize }

// Start opens the input stream and begins pushing chunks from the device
// callback.
func (s *CaptureSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w", err)
	}

	stream, err := s.open()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w", err)
	}

	s.stream = stream
	s.running = true
	s.logger.Info("capture started",
		"device", s.cfg.Device,
		"rate", s.cfg.Format.Rate,
		"channels", s.cfg.Format.Channels,
		"blocksize", s.cfg.Blocksize)
	return nil
}

func (s *CaptureSource) open() (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(
			s.cfg.Format.Channels, 0,
			float64(s.cfg.Format.Rate), s.cfg.Blocksize,
			s.callback)
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		return stream, nil
	}

	dev, err := findDevice(s.cfg.Device, true)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = s.cfg.Format.Channels
	params.SampleRate = float64(s.cfg.Format.Rate)
	params.FramesPerBuffer = s.cfg.Blocksize

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return stream, nil
}

// callback runs on the PortAudio thread. The buffer is owned by PortAudio,
// so it is copied before leaving the callback.
func (s *CaptureSource) callback(in []int16) {
	samples := make([]int16, len(in))
	copy(samples, in)

	err := s.sink.PushChunk(audio.Chunk{Samples: samples, Format: s.cfg.Format})
	if err != nil {
		s.logger.Error("capture push failed", "error", err)
	}
}

// Stop stops capturing and releases the device. The disconnect callback
// fires once.
func (s *CaptureSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("%w", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w", err)
	}
	s.stream = nil
	portaudio.Terminate()

	s.logger.Info("capture stopped")
	if s.cfg.OnDisconnect != nil {
		s.cfg.OnDisconnect()
	}
	return firstErr
}
