// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
)

// ClientConfig configures a ClientSink or TypedClientSink.
type ClientConfig struct {
	// URL of the server, e.g. "ws://localhost:8765". Required.
	URL string

	// Format this sink expects. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize advertised to sources as this sink's preference.
	Blocksize int

	// BufferChunks is the send buffer capacity in chunks. Defaults to
	// DefaultSinkBuffer.
	BufferChunks int

	Logger *slog.Logger
}

func (cfg *ClientConfig) defaults() error {
	if cfg.URL == "" {
		return ErrURLRequired
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
	return nil
}

// ClientSink connects to a WebSocket server and sends chunks as raw
// binary messages. This is the performance-oriented counterpart of
// TypedClientSink: no envelope, no base64.
type ClientSink struct {
	cfg    ClientConfig
	logger *slog.Logger

	ch   chan audio.Chunk
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewClientSink builds a raw WebSocket client sink.
func NewClientSink(cfg ClientConfig) (*ClientSink, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}

	return &ClientSink{
		cfg:    cfg,
		logger: cfg.Logger,
		ch:     make(chan audio.Chunk, cfg.BufferChunks),
		done:   make(chan struct{}),
	}, nil
}

// Format returns the format this sink expects.
func (c *ClientSink) Format() audio.Format { return c.cfg.Format }

// Blocksize returns the configured chunk-size preference.
func (c *ClientSink) Blocksize() int { return c.cfg.Blocksize }

// Start dials the server and launches the send loop.
func (c *ClientSink) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return audio.ErrClosed
	}
	if c.conn != nil {
		return ErrAlreadyRunning
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.sendLoop(conn)

	c.logger.Info("connected", "url", c.cfg.URL)
	return nil
}

func (c *ClientSink) sendLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case chunk := <-c.ch:
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes()); err != nil {
				select {
				case <-c.done:
				default:
					c.logger.Error("send failed", "error", err)
				}
				return
			}
		}
	}
}

// PushChunk queues a chunk for sending, dropping it when the buffer is
// full rather than blocking the caller.
func (c *ClientSink) PushChunk(chunk audio.Chunk) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return audio.ErrClosed
	}

	select {
	case c.ch <- chunk:
	default:
		c.logger.Warn("send buffer full, dropping chunk", "frames", chunk.Frames())
	}
	return nil
}

// Clear drops all queued chunks.
func (c *ClientSink) Clear() {
	for {
		select {
		case <-c.ch:
		default:
			return
		}
	}
}

// Close stops the send loop and closes the connection this sink dialed.
func (c *ClientSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("connection closed")

	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
