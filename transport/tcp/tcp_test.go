// SPDX-License-Identifier: EPL-2.0

package tcp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/kitchensink-io/kitchensink/audio"
	"github.com/kitchensink-io/kitchensink/internal/audiotest"
	"github.com/kitchensink-io/kitchensink/transport/tcp"
)

var testFormat = audio.Format{Rate: 16000, Channels: 1}

func startServer(t *testing.T, sink audio.Sink, cfg tcp.ServerConfig) *tcp.ServerSource {
	t.Helper()

	cfg.Addr = "127.0.0.1:0"
	src, err := tcp.NewServerSource(sink, cfg)
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { src.Stop() })
	return src
}

func TestServerSourceReceivesChunks(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 0)
	src := startServer(t, sink, tcp.ServerConfig{Format: testFormat, Blocksize: 4})

	conn, err := net.Dial("tcp", src.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	want := audio.Chunk{Samples: []int16{100, -200, 300, -400}, Format: testFormat}
	if _, err := conn.Write(want.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := conn.Write(want.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !audiotest.Eventually(2*time.Second, func() bool { return len(sink.Chunks()) >= 2 }) {
		t.Fatalf("got %d chunks, want 2", len(sink.Chunks()))
	}

	got := sink.Chunks()[0]
	for i, s := range want.Samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, got.Samples[i], s)
		}
	}
	if got.Format != testFormat {
		t.Errorf("chunk format = %+v, want %+v", got.Format, testFormat)
	}
}

func TestServerSourceAppliesGain(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 0)
	src := startServer(t, sink, tcp.ServerConfig{Format: testFormat, Blocksize: 2, Gain: 2.0})

	conn, err := net.Dial("tcp", src.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	in := audio.Chunk{Samples: []int16{1000, 30000}, Format: testFormat}
	if _, err := conn.Write(in.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !audiotest.Eventually(2*time.Second, func() bool { return len(sink.Chunks()) >= 1 }) {
		t.Fatal("no chunk received")
	}

	got := sink.Chunks()[0].Samples
	if got[0] != 2000 {
		t.Errorf("sample 0 = %d, want 2000", got[0])
	}
	if got[1] != 32767 {
		t.Errorf("sample 1 = %d, want 32767 (clamped)", got[1])
	}
}

func TestServerSourceOnDisconnect(t *testing.T) {
	t.Parallel()

	disconnected := make(chan struct{}, 1)
	sink := audiotest.NewCollectSink(testFormat, 0)
	src := startServer(t, sink, tcp.ServerConfig{
		Format:       testFormat,
		Blocksize:    4,
		OnDisconnect: func() { disconnected <- struct{}{} },
	})

	conn, err := net.Dial("tcp", src.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
}

func TestServerSourceStop(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 0)
	src := startServer(t, sink, tcp.ServerConfig{Format: testFormat})

	addr := src.Addr().String()
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v, want nil", err)
	}
	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Error("listener still accepting after Stop")
	}
}

func TestServerSourceBlocksizeNegotiation(t *testing.T) {
	t.Parallel()

	sink := audiotest.NewCollectSink(testFormat, 480)
	src, err := tcp.NewServerSource(sink, tcp.ServerConfig{})
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if got := src.Blocksize(); got != 480 {
		t.Errorf("Blocksize() = %d, want 480 (sink preference)", got)
	}

	indifferent := audiotest.NewCollectSink(testFormat, 0)
	src, err = tcp.NewServerSource(indifferent, tcp.ServerConfig{})
	if err != nil {
		t.Fatalf("NewServerSource: %v", err)
	}
	if got := src.Blocksize(); got != tcp.DefaultServerBlocksize {
		t.Errorf("Blocksize() = %d, want %d", got, tcp.DefaultServerBlocksize)
	}
}

func TestClientSinkRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := tcp.NewClientSink(tcp.ClientConfig{}); !errors.Is(err, tcp.ErrAddrRequired) {
		t.Errorf("err = %v, want ErrAddrRequired", err)
	}
}

func TestClientSinkSends(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 8)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		received <- buf
	}()

	sink, err := tcp.NewClientSink(tcp.ClientConfig{Addr: ln.Addr().String(), Format: testFormat})
	if err != nil {
		t.Fatalf("NewClientSink: %v", err)
	}
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sink.Close()

	chunk := audio.Chunk{Samples: []int16{1, 2, 3, 4}, Format: testFormat}
	if err := sink.PushChunk(chunk); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}

	select {
	case data := <-received:
		got := audio.ChunkFromBytes(data, testFormat)
		for i, s := range chunk.Samples {
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
	if err := sink.Close(); err != nil {
		t.Errorf("second Close: %v, want nil", err)
	}
	err = sink.PushChunk(chunk)
	if !errors.Is(err, audio.ErrClosed) {
		t.Errorf("PushChunk after Close: err = %v, want ErrClosed", err)
	}
}

func TestClientSinkStartFailure(t *testing.T) {
	t.Parallel()

	sink, err := tcp.NewClientSink(tcp.ClientConfig{Addr: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClientSink: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := sink.Start(ctx); err == nil {
		sink.Close()
		t.Fatal("Start succeeded against a closed port")
	}
}
