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

// TypedClientSink connects to a typed WebSocket server and sends audio as
// base64 "audio" envelopes. SendMessage lets the application interleave
// arbitrary typed messages (text, control events) on the same connection;
// all messages funnel through one send loop, so writes never race.
type TypedClientSink struct {
	cfg    ClientConfig
	logger *slog.Logger

	ch   chan Message
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewTypedClientSink builds a typed WebSocket client sink.
func NewTypedClientSink(cfg ClientConfig) (*TypedClientSink, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}

	return &TypedClientSink{
		cfg:    cfg,
		logger: cfg.Logger,
		ch:     make(chan Message, cfg.BufferChunks),
		done:   make(chan struct{}),
	}, nil
}

// Format returns the format this sink expects.
func (c *TypedClientSink) Format() audio.Format { return c.cfg.Format }

// Blocksize returns the configured chunk-size preference.
func (c *TypedClientSink) Blocksize() int { return c.cfg.Blocksize }

// Start dials the server and launches the send loop.
func (c *TypedClientSink) Start(ctx context.Context) error {
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

func (c *TypedClientSink) sendLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.ch:
			if err := conn.WriteJSON(msg); err != nil {
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

// PushChunk encodes the chunk as an "audio" envelope and queues it,
// dropping it when the buffer is full rather than blocking the caller.
func (c *TypedClientSink) PushChunk(chunk audio.Chunk) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return audio.ErrClosed
	}

	msg, err := NewAudioMessage(chunk)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	select {
	case c.ch <- msg:
	default:
		c.logger.Warn("send buffer full, dropping chunk", "frames", chunk.Frames())
	}
	return nil
}

// SendMessage queues an arbitrary typed message. Unlike PushChunk it
// blocks when the buffer is full: control messages are not droppable.
func (c *TypedClientSink) SendMessage(msgType string, payload any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return audio.ErrClosed
	}

	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	select {
	case c.ch <- msg:
		return nil
	case <-c.done:
		return audio.ErrClosed
	}
}

// Clear drops all queued messages, audio and typed alike.
func (c *TypedClientSink) Clear() {
	for {
		select {
		case <-c.ch:
		default:
			return
		}
	}
}

// Close stops the send loop and closes the connection this sink dialed.
func (c *TypedClientSink) Close() error {
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
