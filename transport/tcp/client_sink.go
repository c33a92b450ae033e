// SPDX-License-Identifier: EPL-2.0

package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/kitchensink-io/kitchensink/audio"
)

// DefaultSinkBuffer is the number of chunks a network sink buffers before
// it starts dropping.
const DefaultSinkBuffer = 64

// ClientConfig configures a ClientSink.
type ClientConfig struct {
	// Addr of the server to connect to, e.g. "10.0.0.5:8123". Required.
	Addr string

	// Format this sink expects. Defaults to 16 kHz mono.
	Format audio.Format

	// Blocksize advertised to sources as this sink's preference.
	// 0 means no preference.
	Blocksize int

	// BufferChunks is the send buffer capacity in chunks. Defaults to
	// DefaultSinkBuffer. When full, pushed chunks are dropped.
	BufferChunks int

	Logger *slog.Logger
}

// ClientSink connects to a TCP server and forwards pushed chunks as raw
// PCM16-LE bytes. Chunks are buffered and written by a background
// goroutine, so PushChunk never blocks on the network.
type ClientSink struct {
	cfg    ClientConfig
	logger *slog.Logger

	ch   chan audio.Chunk
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewClientSink builds a TCP client sink.
func NewClientSink(cfg ClientConfig) (*ClientSink, error) {
	if cfg.Addr == "" {
		return nil, ErrAddrRequired
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

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	c.conn = conn

	c.wg.Add(1)
	go c.sendLoop(conn)

	c.logger.Info("connected", "addr", c.cfg.Addr)
	return nil
}

func (c *ClientSink) sendLoop(conn net.Conn) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case chunk := <-c.ch:
			if _, err := conn.Write(chunk.Bytes()); err != nil {
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

// PushChunk queues a chunk for sending. When the buffer is full the chunk
// is dropped with a warning rather than blocking the caller.
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

// Close stops the send loop and closes the connection.
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
