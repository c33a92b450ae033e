// SPDX-License-Identifier: EPL-2.0

package file

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kitchensink-io/kitchensink/audio"
)

// DefaultBlocksize is the frames-per-chunk pushed from a file when
// neither the config nor the sink expresses a preference.
const DefaultBlocksize = 1024

// Config configures a file Source.
type Config struct {
	// Blocksize is the frames per chunk to push. 0 adopts the sink's
	// preference, then DefaultBlocksize.
	Blocksize int

	// Realtime paces pushes at playback speed instead of decoding as
	// fast as possible. Use it when feeding a network sink directly.
	Realtime bool

	// OnDisconnect, if set, is invoked once when the file ends or the
	// source is stopped.
	OnDisconnect func()

	Logger *slog.Logger
}

// reader is the decoding half of a file source: it yields interleaved
// int16 samples in a fixed format until io.EOF.
type reader interface {
	readPCM(dst []int16) (int, error)
	format() audio.Format
	close() error
}

// Source decodes an audio file and pushes fixed-size chunks to the sink.
// Construct one with NewWAVSource, NewMP3Source, NewVorbisSource,
// NewAIFFSource, or by extension with Open.
type Source struct {
	sink   audio.Sink
	r      reader
	cfg    Config
	fmt    audio.Format
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func newSource(sink audio.Sink, r reader, cfg Config) *Source {
	cfg.Blocksize = audio.NegotiateBlocksize(cfg.Blocksize, sink, DefaultBlocksize)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{sink: sink, r: r, cfg: cfg, fmt: r.format(), logger: cfg.Logger}
}

// Format returns the decoded stream's format.
func (s *Source) Format() audio.Format { return s.fmt }

// Blocksize returns the negotiated frames per chunk.
func (s *Source) Blocksize() int { return s.cfg.Blocksize }

// Start begins decoding and pushing chunks on a background goroutine.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.pushLoop()
	return nil
}

func (s *Source) pushLoop() {
	defer s.wg.Done()
	defer func() {
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect()
		}
	}()

	buf := make([]int16, s.cfg.Blocksize*s.fmt.Channels)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := s.r.readPCM(buf)
		if n > 0 {
			samples := make([]int16, n)
			copy(samples, buf[:n])
			chunk := audio.Chunk{Samples: samples, Format: s.fmt}

			if perr := s.sink.PushChunk(chunk); perr != nil {
				s.logger.Error("push failed", "error", perr)
				return
			}

			if s.cfg.Realtime {
				select {
				case <-s.done:
					return
				case <-time.After(chunk.Duration()):
				}
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Error("decode failed", "error", err)
			}
			return
		}
	}
}

// Stop ends decoding and closes the underlying file.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.r.close()
}
