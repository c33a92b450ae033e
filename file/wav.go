// SPDX-License-Identifier: EPL-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kitchensink-io/kitchensink/audio"
)

// pcmDecoder is the buffer-filling surface shared by the go-audio WAV and
// AIFF decoders.
type pcmDecoder interface {
	PCMBuffer(buf *gaudio.IntBuffer) (int, error)
}

// wavReader adapts a go-audio WAV decoder to the reader interface.
type wavReader struct {
	f      *os.File
	dec    pcmDecoder
	fmtt   audio.Format
	intBuf *gaudio.IntBuffer
}

// NewWAVSource builds a source that decodes a 16-bit PCM WAV file.
func NewWAVSource(sink audio.Sink, path string, cfg Config) (*Source, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if path == "" {
		return nil, ErrPathRequired
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotValidFile, path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w", err)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit", ErrOnlyPCM16bitSupported, dec.BitDepth)
	}

	r := &wavReader{
		f:    f,
		dec:  dec,
		fmtt: audio.Format{Rate: int(dec.SampleRate), Channels: int(dec.NumChans)},
	}
	return newSource(sink, r, cfg), nil
}

func (r *wavReader) format() audio.Format { return r.fmtt }
func (r *wavReader) close() error         { return r.f.Close() }

func (r *wavReader) readPCM(dst []int16) (int, error) {
	if r.intBuf == nil || len(r.intBuf.Data) != len(dst) {
		r.intBuf = &gaudio.IntBuffer{
			Data: make([]int, len(dst)),
			Format: &gaudio.Format{
				NumChannels: r.fmtt.Channels,
				SampleRate:  r.fmtt.Rate,
			},
		}
	}

	n, err := r.dec.PCMBuffer(r.intBuf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("%w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := range n {
		dst[i] = int16(r.intBuf.Data[i])
	}
	return n, nil
}

// WAVSinkConfig configures a WAVSink.
type WAVSinkConfig struct {
	// Format of the chunks to be recorded. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize advertised to sources as this sink's preference.
	Blocksize int

	// BufferChunks is the write buffer capacity in chunks. Defaults to
	// 64. When full, pushed chunks are dropped with a warning.
	BufferChunks int

	Logger *slog.Logger
}

// WAVSink records pushed chunks to a 16-bit PCM WAV file. Writing happens
// on a background goroutine; Close flushes what is queued and finalizes
// the WAV header.
type WAVSink struct {
	path   string
	cfg    WAVSinkConfig
	logger *slog.Logger

	ch chan audio.Chunk
	wg sync.WaitGroup

	mu      sync.Mutex
	f       *os.File
	enc     *wav.Encoder
	started bool
	closed  bool
	werr    error
}

// NewWAVSink builds a WAV recording sink. The file is created on Start.
func NewWAVSink(path string, cfg WAVSinkConfig) (*WAVSink, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	if cfg.BufferChunks == 0 {
		cfg.BufferChunks = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &WAVSink{
		path:   path,
		cfg:    cfg,
		logger: cfg.Logger,
		ch:     make(chan audio.Chunk, cfg.BufferChunks),
	}, nil
}

// Format returns the recording format.
func (s *WAVSink) Format() audio.Format { return s.cfg.Format }

// Blocksize returns the configured chunk-size preference.
func (s *WAVSink) Blocksize() int { return s.cfg.Blocksize }

// Start creates the output file and launches the write loop.
func (s *WAVSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audio.ErrClosed
	}
	if s.started {
		return nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	s.f = f
	s.enc = wav.NewEncoder(f, s.cfg.Format.Rate, 16, s.cfg.Format.Channels, 1)
	s.started = true

	s.wg.Add(1)
	go s.writeLoop()

	s.logger.Info("recording", "path", s.path, "rate", s.cfg.Format.Rate, "channels", s.cfg.Format.Channels)
	return nil
}

func (s *WAVSink) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.ch {
		ints := make([]int, len(chunk.Samples))
		for i, v := range chunk.Samples {
			ints[i] = int(v)
		}

		buf := &gaudio.IntBuffer{
			Data: ints,
			Format: &gaudio.Format{
				NumChannels: s.cfg.Format.Channels,
				SampleRate:  s.cfg.Format.Rate,
			},
			SourceBitDepth: 16,
		}

		if err := s.enc.Write(buf); err != nil {
			s.logger.Error("write failed", "error", err)
			s.mu.Lock()
			if s.werr == nil {
				s.werr = err
			}
			s.mu.Unlock()
			return
		}
	}
}

// PushChunk queues a chunk for writing. It never blocks; a full buffer
// drops the chunk with a warning.
func (s *WAVSink) PushChunk(chunk audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audio.ErrClosed
	}

	select {
	case s.ch <- chunk:
	default:
		s.logger.Warn("write buffer full, dropping chunk", "frames", chunk.Frames())
	}
	return nil
}

// Clear drops all queued chunks. Already-written audio stays in the file.
func (s *WAVSink) Clear() {
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// Close flushes queued chunks, finalizes the WAV header and closes the
// file.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.wg.Wait()

	var firstErr error
	s.mu.Lock()
	firstErr = s.werr
	s.mu.Unlock()

	if err := s.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("recording closed", "path", s.path)
	if firstErr != nil {
		return fmt.Errorf("%w", firstErr)
	}
	return nil
}
