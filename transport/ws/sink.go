// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
)

// DefaultSinkBuffer is the number of chunks a WebSocket sink buffers
// before it starts dropping.
const DefaultSinkBuffer = 64

// SinkConfig configures a Sink attached to an existing connection.
type SinkConfig struct {
	// Format this sink expects. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize advertised to sources as this sink's preference.
	Blocksize int

	// BufferChunks is the send buffer capacity in chunks. Defaults to
	// DefaultSinkBuffer.
	BufferChunks int

	Logger *slog.Logger
}

// Sink sends chunks as binary messages over a pre-existing WebSocket
// connection. Like Source, it never dials or closes the connection.
type Sink struct {
	conn   *websocket.Conn
	cfg    SinkConfig
	logger *slog.Logger

	ch   chan audio.Chunk
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewSink builds a sink that writes to conn.
func NewSink(conn *websocket.Conn, cfg SinkConfig) (*Sink, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	if cfg.BufferChunks == 0 {
		cfg.BufferChunks = DefaultSinkBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sink{
		conn:   conn,
		cfg:    cfg,
		logger: cfg.Logger,
		ch:     make(chan audio.Chunk, cfg.BufferChunks),
		done:   make(chan struct{}),
	}, nil
}

// Format returns the format this sink expects.
func (s *Sink) Format() audio.Format { return s.cfg.Format }

// Blocksize returns the configured chunk-size preference.
func (s *Sink) Blocksize() int { return s.cfg.Blocksize }

// Start launches the send loop.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audio.ErrClosed
	}
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true

	s.wg.Add(1)
	go s.sendLoop()

	s.logger.Debug("send loop started")
	return nil
}

func (s *Sink) sendLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case chunk := <-s.ch:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes()); err != nil {
				select {
				case <-s.done:
				default:
					s.logger.Error("send failed", "error", err)
				}
				return
			}
		}
	}
}

// PushChunk queues a chunk for sending, dropping it when the buffer is
// full rather than blocking the caller.
func (s *Sink) PushChunk(chunk audio.Chunk) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return audio.ErrClosed
	}

	select {
	case s.ch <- chunk:
	default:
		s.logger.Warn("send buffer full, dropping chunk", "frames", chunk.Frames())
	}
	return nil
}

// Clear drops all queued chunks.
func (s *Sink) Clear() {
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// Close stops the send loop. It does NOT close the WebSocket connection;
// whoever established the connection owns its lifecycle.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("send loop stopped")
	return nil
}
