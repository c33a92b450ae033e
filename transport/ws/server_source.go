// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"log/slog"
	"net"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
)

// ServerConfig configures a ServerSource or TypedServerSource.
type ServerConfig struct {
	// Addr to listen on, e.g. ":8765".
	Addr string

	// Path of the WebSocket endpoint. Defaults to "/".
	Path string

	// Format of the incoming audio. Defaults to 16 kHz mono.
	Format audio.Format

	// OnDisconnect, if set, is invoked whenever a client disconnects.
	OnDisconnect func()

	Logger *slog.Logger
}

// ServerSource runs a WebSocket server and forwards binary audio messages
// from connected clients to the sink. It expects raw PCM16-LE frames and
// pushes whatever chunk size the client sends; this is the
// performance-oriented counterpart of TypedServerSource.
type ServerSource struct {
	sink   audio.Sink
	cfg    ServerConfig
	logger *slog.Logger
	srv    *server
}

// NewServerSource builds a raw WebSocket server source feeding sink.
func NewServerSource(sink audio.Sink, cfg ServerConfig) (*ServerSource, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8765"
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

	s := &ServerSource{sink: sink, cfg: cfg, logger: cfg.Logger}
	s.srv = newServer(cfg.Addr, cfg.Path, cfg.Logger, s.handle)
	return s, nil
}

// Format returns the format of the chunks this source produces.
func (s *ServerSource) Format() audio.Format { return s.cfg.Format }

// Addr returns the bound listen address, useful when listening on ":0".
func (s *ServerSource) Addr() net.Addr { return s.srv.boundAddr() }

// Start begins listening for WebSocket clients.
func (s *ServerSource) Start(ctx context.Context) error { return s.srv.start(ctx) }

// Stop shuts the server down and disconnects all clients.
func (s *ServerSource) Stop() error { return s.srv.stop() }

func (s *ServerSource) handle(conn *websocket.Conn) {
	defer func() {
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect()
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("client read ended", "error", err)
			}
			return
		}

		if mt != websocket.BinaryMessage {
			s.logger.Warn("ignoring non-binary message")
			continue
		}

		chunk := audio.ChunkFromBytes(data, s.cfg.Format)
		if err := s.sink.PushChunk(chunk); err != nil {
			s.logger.Error("push failed", "error", err)
			return
		}
	}
}
