// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// server owns the HTTP listener and upgrade plumbing shared by the raw
// and typed server sources. Each upgraded connection is handed to the
// handle func, which returns when the client is done.
type server struct {
	addr   string
	path   string
	logger *slog.Logger
	handle func(conn *websocket.Conn)

	upgrader websocket.Upgrader

	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
	conns   map[*websocket.Conn]struct{}
	running bool
	wg      sync.WaitGroup
}

func newServer(addr, path string, logger *slog.Logger, handle func(*websocket.Conn)) *server {
	if path == "" {
		path = "/"
	}
	return &server{
		addr:   addr,
		path:   path,
		logger: logger,
		handle: handle,
		upgrader: websocket.Upgrader{
			// Audio endpoints are consumed by non-browser peers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (s *server) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.serveWS)

	s.ln = ln
	s.srv = &http.Server{Handler: mux}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.logger.Info("websocket server listening", "addr", ln.Addr().String(), "path", s.path)
	return nil
}

func (s *server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}

	// Register under the lock so stop() either sees this handler in the
	// WaitGroup or the handler sees the server stopped.
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Info("client connected", "remote", conn.RemoteAddr().String())

	s.handle(conn)

	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// boundAddr returns the listener address, useful when listening on ":0".
func (s *server) boundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// stop shuts the HTTP server down and closes the upgraded connections,
// which http.Server no longer tracks after hijacking.
func (s *server) stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.srv
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := srv.Close()
	s.wg.Wait()

	s.mu.Lock()
	s.ln = nil
	s.srv = nil
	s.mu.Unlock()

	s.logger.Info("websocket server stopped")
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
