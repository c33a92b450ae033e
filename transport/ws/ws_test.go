// SPDX-License-Identifier: EPL-2.0

package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kitchensink-io/kitchensink/audio"
	"github.com/kitchensink-io/kitchensink/internal/audiotest"
	"github.com/kitchensink-io/kitchensink/transport/ws"
)

var testFormat = audio.Format{Rate: 16000, Channels: 1}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsURL rewrites an httptest server URL to the ws scheme.
func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerSourceReceivesBinary(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 0)
	src, err := ws.NewServerSource(sink, ws.ServerConfig{Addr: "127.0.0.1:0", Format: testFormat})
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	conn := dial(t, "ws://"+src.Addr().String())

	want := audio.Chunk{Samples: []int16{10, -20, 30}, Format: testFormat}
	if err := conn.WriteMessage(websocket.BinaryMessage, want.Bytes()); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if !audiotest.Eventually(2*time.Second, func() bool { return len(sink.Chunks()) >= 1 }) {
		t.Fatal("no chunk received")
	}
	got := sink.Chunks()[0]
	for i, s := range want.Samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}
}

func TestServerSourceStopDisconnectsClients(t *testing.T) {
	t.Parallel()

	disconnected := make(chan struct{}, 1)
	sink := audiotest.NewCollectSink(testFormat, 0)
	src, err := ws.NewServerSource(sink, ws.ServerConfig{
		Addr:         "127.0.0.1:0",
		Format:       testFormat,
		OnDisconnect: func() { disconnected <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := dial(t, "ws://"+src.Addr().String())

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}

	// The client's read must fail once the server is down.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client read succeeded after server Stop")
	}

	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v, want nil", err)
	}
}

func TestServerSourceStopWaitsForHandlers(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 0)
	src, err := ws.NewServerSource(sink, ws.ServerConfig{Addr: "127.0.0.1:0", Format: testFormat})
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := dial(t, "ws://"+src.Addr().String())

	chunk := audio.Chunk{Samples: []int16{1, 2}, Format: testFormat}
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes()); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if !audiotest.Eventually(2*time.Second, func() bool { return len(sink.Chunks()) >= 1 }) {
		t.Fatal("no chunk received")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Once Stop returns every handler has exited; nothing may be pushed
	// into the sink afterwards.
	before := len(sink.Chunks())
	conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes())
	time.Sleep(100 * time.Millisecond)
	if got := len(sink.Chunks()); got != before {
		t.Errorf("sink grew from %d to %d chunks after Stop returned", before, got)
	}
}

func TestTypedServerSource(t *testing.T) {
	t.Parallel()

	type handled struct {
		msgType string
		payload json.RawMessage
	}
	events := make(chan handled, 1)

	sink := audiotest.NewCollectSink(testFormat, 0)
	src, err := ws.NewTypedServerSource(sink, ws.TypedServerConfig{
		ServerConfig: ws.ServerConfig{Addr: "127.0.0.1:0", Format: testFormat},
		MessageHandler: func(msgType string, payload json.RawMessage) {
			events <- handled{msgType, payload}
		},
	})
	if err != nil {
		t.Fatalf("NewTypedServerSource: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	conn := dial(t, "ws://"+src.Addr().String())

	want := audio.Chunk{Samples: []int16{5, -6, 7, -8}, Format: testFormat}
	msg, err := ws.NewAudioMessage(want)
	if err != nil {
		t.Fatalf("NewAudioMessage: %v", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	text, err := ws.NewMessage(ws.TypeText, "hello")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := conn.WriteJSON(text); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	if !audiotest.Eventually(2*time.Second, func() bool { return len(sink.Chunks()) >= 1 }) {
		t.Fatal("no audio chunk received")
	}
	got := sink.Chunks()[0]
	for i, s := range want.Samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}

	select {
	case ev := <-events:
		if ev.msgType != ws.TypeText {
			t.Errorf("handled type = %q, want %q", ev.msgType, ws.TypeText)
		}
		var s string
		if err := json.Unmarshal(ev.payload, &s); err != nil || s != "hello" {
			t.Errorf("payload = %s, want \"hello\"", ev.payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message handler never fired")
	}
}

func TestClientSinkRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := ws.NewClientSink(ws.ClientConfig{}); !errors.Is(err, ws.ErrURLRequired) {
		t.Errorf("raw: err = %v, want ErrURLRequired", err)
	}
	if _, err := ws.NewTypedClientSink(ws.ClientConfig{}); !errors.Is(err, ws.ErrURLRequired) {
		t.Errorf("typed: err = %v, want ErrURLRequired", err)
	}
}

// collectServer runs a WebSocket server that forwards every received
// message into a channel.
func collectServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()

	received := make(chan []byte, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestClientSinkSendsBinary(t *testing.T) {
	t.Parallel()

	srv, received := collectServer(t)

	sink, err := ws.NewClientSink(ws.ClientConfig{URL: wsURL(srv), Format: testFormat})
	if err != nil {
		t.Fatalf("NewClientSink: %v", err)
	}
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sink.Close()

	want := audio.Chunk{Samples: []int16{1, -2, 3, -4}, Format: testFormat}
	if err := sink.PushChunk(want); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}

	select {
	case data := <-received:
		got := audio.ChunkFromBytes(data, testFormat)
		for i, s := range want.Samples {
			if got.Samples[i] != s {
				t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the chunk")
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.PushChunk(want); !errors.Is(err, audio.ErrClosed) {
		t.Errorf("PushChunk after Close: err = %v, want ErrClosed", err)
	}
}

func TestTypedClientSinkSendsEnvelopes(t *testing.T) {
	t.Parallel()

	srv, received := collectServer(t)

	sink, err := ws.NewTypedClientSink(ws.ClientConfig{URL: wsURL(srv), Format: testFormat})
	if err != nil {
		t.Fatalf("NewTypedClientSink: %v", err)
	}
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sink.Close()

	want := audio.Chunk{Samples: []int16{11, -12}, Format: testFormat}
	if err := sink.PushChunk(want); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if err := sink.SendMessage("event", map[string]string{"name": "mute"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	var msgs []ws.Message
	for len(msgs) < 2 {
		select {
		case data := <-received:
			var m ws.Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			msgs = append(msgs, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d messages, want 2", len(msgs))
		}
	}

	if msgs[0].Type != ws.TypeAudio {
		t.Fatalf("first message type = %q, want %q", msgs[0].Type, ws.TypeAudio)
	}
	got, err := msgs[0].AudioChunk(testFormat)
	if err != nil {
		t.Fatalf("AudioChunk: %v", err)
	}
	for i, s := range want.Samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}

	if msgs[1].Type != "event" {
		t.Errorf("second message type = %q, want \"event\"", msgs[1].Type)
	}
}

func TestAttachedSourceAndSink(t *testing.T) {
	t.Parallel()

	// Echo server: Sink and Source share the client connection, so a
	// pushed chunk comes back through the source.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn := dial(t, wsURL(srv))

	collect := audiotest.NewCollectSink(testFormat, 0)

	var textMu sync.Mutex
	var texts []string
	src, err := ws.NewSource(collect, conn, ws.SourceConfig{
		Format: testFormat,
		TextHandler: func(text string) {
			textMu.Lock()
			texts = append(texts, text)
			textMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	snd, err := ws.NewSink(conn, ws.SinkConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("source Start: %v", err)
	}
	if err := snd.Start(ctx); err != nil {
		t.Fatalf("sink Start: %v", err)
	}

	want := audio.Chunk{Samples: []int16{42, -42}, Format: testFormat}
	if err := snd.PushChunk(want); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}

	if !audiotest.Eventually(2*time.Second, func() bool { return len(collect.Chunks()) >= 1 }) {
		t.Fatal("echoed chunk never arrived")
	}
	got := collect.Chunks()[0]
	for i, s := range want.Samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}

	// Text messages go to the handler, not the audio sink.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if !audiotest.Eventually(2*time.Second, func() bool {
		textMu.Lock()
		defer textMu.Unlock()
		return len(texts) >= 1
	}) {
		t.Fatal("text handler never fired")
	}

	// Neither Stop nor Close may close the shared connection.
	if err := snd.Close(); err != nil {
		t.Fatalf("sink Close: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("source Stop: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("still open")); err != nil {
		t.Errorf("connection unusable after detach: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v, want nil", err)
	}
}
