// SPDX-License-Identifier: EPL-2.0

// Package kitchensink routes audio between sources and sinks.
//
// The library defines a uniform Source and Sink abstraction so audio can
// be captured from one place (microphone, TCP, WebSocket, audio files)
// and delivered to another (speakers, TCP, WebSocket, WAV files), with
// optional middleware observing or transforming chunks in transit. Every
// component is a thin adapter over an existing audio or socket library;
// the pipeline itself is constructor injection of a sink.
//
// # Packages
//
//   - audio: Chunk, Sink and Source interfaces, format Converter
//   - device: microphone capture and speaker playback (PortAudio)
//   - transport/tcp: raw PCM16 over TCP
//   - transport/ws: raw and typed-JSON audio over WebSocket
//   - file: WAV/MP3/Vorbis/AIFF file sources, WAV recording sink
//   - middleware: gain, fan-out, level metering
//
// # Quick Start
//
// Receive audio over TCP and play it:
//
//	player, err := device.NewPlayerSink(device.PlayerConfig{
//	    Format: audio.Format{Rate: 16000, Channels: 1},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	src, err := tcp.NewServerSource(player, tcp.ServerConfig{Addr: ":8123"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, _ := kitchensink.New(src, player)
//	if err := p.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Capture the microphone and stream it to a WebSocket server, converting
// from the device's native format on the way:
//
//	snd, _ := ws.NewClientSink(ws.ClientConfig{URL: "ws://host:8765"})
//	conv, _ := audio.NewConverter(snd,
//	    audio.Format{Rate: 44100, Channels: 2},
//	    audio.Format{Rate: 16000, Channels: 1},
//	)
//	mic, _ := device.NewCaptureSource(conv, device.CaptureConfig{
//	    Format: audio.Format{Rate: 44100, Channels: 2},
//	})
//
// # Chunks and Blocksize
//
// Audio moves as Chunks: interleaved int16 PCM plus a Format. Blocksize
// (frames per chunk) is a latency/throughput hint negotiated between
// stages: a sink advertises a preference, and sources with no explicit
// blocksize adopt it. There is no other flow control — sinks buffer and
// drop rather than block, because PushChunk is called from audio device
// callbacks.
package kitchensink
