// SPDX-License-Identifier: EPL-2.0

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/kitchensink-io/kitchensink/audio"
)

// DefaultServerBlocksize is the frames-per-chunk read from a client when
// neither the config nor the sink expresses a preference.
const DefaultServerBlocksize = 960

// ServerConfig configures a ServerSource.
type ServerConfig struct {
	// Addr to listen on, e.g. ":8123".
	Addr string

	// Format of the incoming PCM16-LE stream. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize is the frames per chunk to read from the socket. 0
	// adopts the sink's preference, then DefaultServerBlocksize.
	Blocksize int

	// Gain amplifies the incoming audio, clamped to the int16 range.
	// 0 and 1 both mean unity gain.
	Gain float32

	// OnDisconnect, if set, is invoked whenever a client disconnects.
	OnDisconnect func()

	Logger *slog.Logger
}

// ServerSource listens for TCP connections carrying raw PCM16-LE audio,
// reads exact chunks from each client and pushes them to the sink. The
// stream has no framing beyond the negotiated chunk size: clients write
// blocksize*channels*2 bytes per chunk.
type ServerSource struct {
	sink   audio.Sink
	cfg    ServerConfig
	logger *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewServerSource builds a server source feeding sink.
func NewServerSource(sink audio.Sink, cfg ServerConfig) (*ServerSource, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8123"
	}
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	cfg.Blocksize = audio.NegotiateBlocksize(cfg.Blocksize, sink, DefaultServerBlocksize)
	if cfg.Gain == 0 {
		cfg.Gain = 1.0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ServerSource{
		sink:   sink,
		cfg:    cfg,
		logger: cfg.Logger,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Format returns the format of the chunks this source produces.
func (s *ServerSource) Format() audio.Format { return s.cfg.Format }

// Blocksize returns the negotiated frames per chunk.
func (s *ServerSource) Blocksize() int { return s.cfg.Blocksize }

// Addr returns the bound listen address, useful when listening on ":0".
func (s *ServerSource) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start begins listening and accepting clients.
func (s *ServerSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	s.ln = ln
	s.done = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("audio source server listening", "addr", ln.Addr().String())
	return nil
}

func (s *ServerSource) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *ServerSource) handle(conn net.Conn) {
	defer s.wg.Done()

	addr := conn.RemoteAddr().String()
	s.logger.Info("client connected", "remote", addr)

	chunkBytes := s.cfg.Blocksize * s.cfg.Format.Channels * 2
	buf := make([]byte, chunkBytes)

	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Info("client disconnected", "remote", addr)
			} else {
				s.logger.Error("client read failed", "remote", addr, "error", err)
			}
			break
		}

		chunk := audio.ChunkFromBytes(buf, s.cfg.Format)
		if s.cfg.Gain != 1.0 {
			applyGain(chunk.Samples, s.cfg.Gain)
		}

		if err := s.sink.PushChunk(chunk); err != nil {
			s.logger.Error("push failed", "remote", addr, "error", err)
			break
		}
	}

	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	if s.cfg.OnDisconnect != nil {
		s.cfg.OnDisconnect()
	}
}

// applyGain scales samples in place with int16 clamping.
func applyGain(samples []int16, gain float32) {
	for i, v := range samples {
		x := float32(v) * gain
		if x > 32767 {
			x = 32767
		} else if x < -32768 {
			x = -32768
		}
		samples[i] = int16(x)
	}
}

// Stop closes the listener and every live client connection, then waits
// for the handlers to finish.
func (s *ServerSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.done)
	err := s.ln.Close()
	s.ln = nil
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("server stopped")

	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
