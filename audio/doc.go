// SPDX-License-Identifier: EPL-2.0

// Package audio defines the core source/sink abstractions of the pipeline.
//
// This package contains the building blocks every other package is made of:
//   - Chunk, a block of interleaved PCM16 samples with its Format
//   - Sink, the interface for audio destinations
//   - Source, the interface for audio origins
//   - SinkFunc, a function adapter for ad-hoc sinks
//   - Converter, a streaming format-conversion middleware
//
// # Sinks and Sources
//
// A sink consumes chunks; a source produces them. Sources are constructed
// with the sink they feed, so routing audio is constructor injection:
//
//	sink, _ := device.NewPlayerSink(device.PlayerConfig{
//	    Format: audio.Format{Rate: 16000, Channels: 1},
//	})
//	src, _ := tcp.NewServerSource(sink, tcp.ServerConfig{Addr: ":8123"})
//
// PushChunk is the single cross-component contract. It is called from
// audio device callbacks and socket read loops and therefore must never
// block; sinks buffer internally and drop chunks when the buffer is full.
//
// # Blocksize Negotiation
//
// Blocksize is the number of frames per chunk, a latency/throughput tuning
// hint. A sink advertises its preference via Blocksize(); a source whose
// configured blocksize is zero adopts it. NegotiateBlocksize implements
// this resolution and is used by every source constructor.
//
// # Format Conversion
//
// The Converter adapts a stream from one format to another on its way into
// a sink:
//
//	conv, _ := audio.NewConverter(sink,
//	    audio.Format{Rate: 44100, Channels: 2}, // what the source produces
//	    audio.Format{Rate: 16000, Channels: 1}, // what the sink expects
//	)
//	src, _ := device.NewCaptureSource(conv, device.CaptureConfig{
//	    Format: audio.Format{Rate: 44100, Channels: 2},
//	})
//
// Resampling uses cubic (Catmull-Rom) interpolation with a one-pole
// low-pass filter when downsampling. Channel conversion supports mono to
// N-channel duplication and N-channel to mono averaging.
//
// # Sample Format
//
// Chunks carry interleaved int16 PCM. The wire encoding used by the
// transports is little-endian, produced and parsed by Chunk.Bytes and
// ChunkFromBytes. Bytes are forwarded unmodified unless a middleware
// explicitly transforms them.
package audio
