// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
)

// SourceConfig configures a Source attached to an existing connection.
type SourceConfig struct {
	// Format of the incoming audio. Defaults to 16 kHz mono.
	Format audio.Format

	// TextHandler, if set, receives text messages arriving on the
	// connection. Unhandled text messages are logged and dropped.
	TextHandler func(text string)

	// OnDisconnect, if set, is invoked once when the receive loop ends.
	OnDisconnect func()

	Logger *slog.Logger
}

// Source receives messages on a pre-existing WebSocket connection,
// interprets binary messages as PCM16-LE audio and pushes them to the
// sink. It is a generic receiver: it never dials, upgrades or closes the
// connection, so it can sit on either end of a client or server handler.
type Source struct {
	sink   audio.Sink
	conn   *websocket.Conn
	cfg    SourceConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewSource builds a source that reads from conn and feeds sink.
func NewSource(sink audio.Sink, conn *websocket.Conn, cfg SourceConfig) (*Source, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if conn == nil {
		return nil, ErrNilConn
	}
	if cfg.Format.Rate == 0 {
		cfg.Format.Rate = 16000
	}
	if cfg.Format.Channels == 0 {
		cfg.Format.Channels = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Source{sink: sink, conn: conn, cfg: cfg, logger: cfg.Logger}, nil
}

// Format returns the format of the chunks this source produces.
func (s *Source) Format() audio.Format { return s.cfg.Format }

// Start launches the receive loop. The connection must already be
// established.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true

	s.wg.Add(1)
	go s.receiveLoop()

	s.logger.Info("listening for messages", "remote", s.conn.RemoteAddr().String())
	return nil
}

func (s *Source) receiveLoop() {
	defer s.wg.Done()
	defer func() {
		s.logger.Info("receive loop finished")
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect()
		}
	}()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("peer disconnected")
			} else {
				s.logger.Warn("receive ended", "error", err)
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			chunk := audio.ChunkFromBytes(data, s.cfg.Format)
			if err := s.sink.PushChunk(chunk); err != nil {
				s.logger.Error("push failed", "error", err)
				return
			}
		case websocket.TextMessage:
			if s.cfg.TextHandler != nil {
				s.cfg.TextHandler(string(data))
			} else {
				s.logger.Warn("unhandled text message")
			}
		}
	}
}

// Stop ends the receive loop. It does NOT close the WebSocket connection;
// whoever established the connection owns its lifecycle. The connection
// is not usable for further reads afterwards.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	// Unblock ReadMessage without closing the connection.
	s.conn.SetReadDeadline(time.Now())
	s.wg.Wait()
	s.conn.SetReadDeadline(time.Time{})
	return nil
}
