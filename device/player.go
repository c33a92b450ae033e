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

// DefaultPlayerBlocksize is the frames-per-callback requested from the
// output device when the config does not specify one.
const DefaultPlayerBlocksize = 1024

// PlayerConfig configures a PlayerSink.
type PlayerConfig struct {
	// Format of the playback stream. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize is the frames per callback to request from the device,
	// also advertised to sources as this sink's preference. Defaults to
	// DefaultPlayerBlocksize.
	Blocksize int

	// Device selects the output device by (substring) name. Empty falls
	// back to the KS_OUTPUT_DEVICE environment variable, then to the
	// system default.
	Device string

	Logger *slog.Logger
}

// PlayerSink plays chunks through the speakers. Pushed chunks accumulate
// in a playout buffer; the device callback drains it, spanning chunk
// boundaries and playing silence on underrun, so pushing never blocks.
type PlayerSink struct {
	cfg    PlayerConfig
	logger *slog.Logger
	buf    playout

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	closed  bool
}

// NewPlayerSink builds a speaker sink.
func NewPlayerSink(cfg PlayerConfig) (*PlayerSink, error) {
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	if cfg.Blocksize == 0 {
		cfg.Blocksize = DefaultPlayerBlocksize
	}
	if cfg.Device == "" {
		cfg.Device = os.Getenv(EnvOutputDevice)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &PlayerSink{cfg: cfg, logger: cfg.Logger}, nil
}

// Format returns the playback format.
func (p *PlayerSink) Format() audio.Format { return p.cfg.Format }

// Blocksize returns the frames per chunk this sink prefers.
func (p *PlayerSink) Blocksize() int { return p.cfg.Blocksize }

// Start opens the output stream and begins draining the playout buffer.
func (p *PlayerSink) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return audio.ErrClosed
	}
	if p.running {
		return ErrAlreadyRunning
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w", err)
	}

	stream, err := p.open()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w", err)
	}

	p.stream = stream
	p.running = true
	p.logger.Info("playback started",
		"device", p.cfg.Device,
		"rate", p.cfg.Format.Rate,
		"channels", p.cfg.Format.Channels,
		"blocksize", p.cfg.Blocksize)
	return nil
}

func (p *PlayerSink) open() (*portaudio.Stream, error) {
	if p.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(
			0, p.cfg.Format.Channels,
			float64(p.cfg.Format.Rate), p.cfg.Blocksize,
			p.callback)
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		return stream, nil
	}

	dev, err := findDevice(p.cfg.Device, false)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = p.cfg.Format.Channels
	params.SampleRate = float64(p.cfg.Format.Rate)
	params.FramesPerBuffer = p.cfg.Blocksize

	stream, err := portaudio.OpenStream(params, p.callback)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return stream, nil
}

// callback runs on the PortAudio thread and fills the device buffer from
// the playout buffer.
func (p *PlayerSink) callback(out []int16) {
	p.buf.fill(out)
}

// PushChunk buffers a chunk for playback. It never blocks.
func (p *PlayerSink) PushChunk(c audio.Chunk) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return audio.ErrClosed
	}

	p.buf.push(c.Samples)
	return nil
}

// Clear drops all buffered audio, cutting playback short.
func (p *PlayerSink) Clear() {
	p.logger.Debug("clearing playout buffer", "buffered", p.buf.buffered())
	p.buf.clear()
}

// Underruns reports how many device callbacks found the buffer empty.
func (p *PlayerSink) Underruns() int64 { return p.buf.underrunCount() }

// Close stops playback and releases the device.
func (p *PlayerSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	if p.running {
		if err := p.stream.Stop(); err != nil {
			firstErr = fmt.Errorf("%w", err)
		}
		if err := p.stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w", err)
		}
		p.stream = nil
		p.running = false
		portaudio.Terminate()
	}
	p.buf.clear()

	p.logger.Info("playback stopped")
	return firstErr
}
