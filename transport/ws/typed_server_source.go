// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
)

// TypedServerConfig configures a TypedServerSource.
type TypedServerConfig struct {
	ServerConfig

	// MessageHandler, if set, receives every non-audio envelope as its
	// type string and raw payload. Unhandled types are logged and
	// dropped.
	MessageHandler func(msgType string, payload json.RawMessage)
}

// TypedServerSource runs a WebSocket server speaking the JSON envelope
// protocol: every message is a Message with a type and payload. "audio"
// envelopes carry base64 PCM16-LE and are pushed to the sink; everything
// else is dispatched to the MessageHandler, so one connection can mix an
// audio stream with text or control events.
type TypedServerSource struct {
	sink   audio.Sink
	cfg    TypedServerConfig
	logger *slog.Logger
	srv    *server
}

// NewTypedServerSource builds a typed WebSocket server source feeding sink.
func NewTypedServerSource(sink audio.Sink, cfg TypedServerConfig) (*TypedServerSource, error) {
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

	s := &TypedServerSource{sink: sink, cfg: cfg, logger: cfg.Logger}
	s.srv = newServer(cfg.Addr, cfg.Path, cfg.Logger, s.handle)
	return s, nil
}

// Format returns the format of the chunks this source produces.
func (s *TypedServerSource) Format() audio.Format { return s.cfg.Format }

// Addr returns the bound listen address, useful when listening on ":0".
func (s *TypedServerSource) Addr() net.Addr { return s.srv.boundAddr() }

// Start begins listening for WebSocket clients.
func (s *TypedServerSource) Start(ctx context.Context) error { return s.srv.start(ctx) }

// Stop shuts the server down and disconnects all clients.
func (s *TypedServerSource) Stop() error { return s.srv.stop() }

func (s *TypedServerSource) handle(conn *websocket.Conn) {
	defer func() {
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("client read ended", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("discarding non-envelope message", "error", err)
			continue
		}

		if msg.Type == TypeAudio {
			chunk, err := msg.AudioChunk(s.cfg.Format)
			if err != nil {
				s.logger.Warn("bad audio payload", "error", err)
				continue
			}
			if err := s.sink.PushChunk(chunk); err != nil {
				s.logger.Error("push failed", "error", err)
				return
			}
			continue
		}

		if s.cfg.MessageHandler != nil {
			s.cfg.MessageHandler(msg.Type, msg.Payload)
		} else {
			s.logger.Warn("unhandled message type", "type", msg.Type)
		}
	}
}
