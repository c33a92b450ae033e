// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"encoding/binary"
	"time"
)

// Format describes the shape of a PCM stream.
type Format struct {
	// Rate is the sample rate in Hz (e.g., 16000 for speech).
	Rate int
	// Channels is the interleaved channel count (1=mono, 2=stereo).
	Channels int
}

// IsZero reports whether the format carries no information.
func (f Format) IsZero() bool { return f.Rate == 0 && f.Channels == 0 }

// Chunk is a block of interleaved 16-bit PCM samples together with the
// format they were produced in. Chunks are the unit of exchange between
// sources, middleware and sinks. 16-bit PCM is the only supported sample
// type.
type Chunk struct {
	Samples []int16
	Format  Format
}

// Frames returns the number of frames (samples per channel) in the chunk.
func (c Chunk) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// Duration returns the playback duration of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.Format.Rate == 0 || c.Format.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Format.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.Format.Rate)
}

// Bytes encodes the samples as little-endian PCM16, the wire format used
// by the TCP and WebSocket transports.
func (c Chunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

// ChunkFromBytes decodes little-endian PCM16 bytes into a chunk with the
// given format. A trailing odd byte is ignored.
func ChunkFromBytes(data []byte, f Format) Chunk {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return Chunk{Samples: samples, Format: f}
}

// Sink is a destination for audio chunks: a speaker, a socket, a file or
// another processing stage. PushChunk is the only cross-component contract;
// it must not block, since sources call it from audio device callbacks and
// socket read loops.
type Sink interface {
	// Start performs any setup the sink needs (opening a device,
	// dialing a server) and launches its background work.
	Start(ctx context.Context) error

	// PushChunk hands a chunk to the sink. Implementations buffer
	// internally and must return promptly; a full buffer drops the
	// chunk rather than blocking the caller.
	PushChunk(c Chunk) error

	// Format returns the format the sink expects. A zero format means
	// the sink accepts whatever it is given.
	Format() Format

	// Blocksize is the preferred number of frames per chunk, or 0 for
	// no preference. Sources use this to negotiate their chunk size.
	Blocksize() int

	// Clear discards any audio currently buffered in the sink.
	Clear()

	// Close stops the sink and releases its resources. Close is
	// idempotent.
	Close() error
}

// Source acquires audio from some origin (a microphone, a socket, a file)
// and pushes chunks into the sink it was constructed with.
type Source interface {
	// Start begins acquiring audio. It returns once the source is
	// running; chunks are delivered on background goroutines.
	Start(ctx context.Context) error

	// Stop signals the source to stop acquiring audio and waits for
	// its background work to finish. Stop is idempotent.
	Stop() error

	// Format returns the format of the chunks the source produces.
	Format() Format
}

// SinkFunc adapts a plain function to the Sink interface. It has no
// lifecycle, no buffer and no format or blocksize preference.
type SinkFunc func(c Chunk) error

func (f SinkFunc) Start(context.Context) error { return nil }
func (f SinkFunc) PushChunk(c Chunk) error     { return f(c) }
func (f SinkFunc) Format() Format              { return Format{} }
func (f SinkFunc) Blocksize() int              { return 0 }
func (f SinkFunc) Clear()                      {}
func (f SinkFunc) Close() error                { return nil }

// NegotiateBlocksize resolves the frames-per-chunk a source should produce.
// An explicitly configured value wins; otherwise the sink's preference is
// adopted; otherwise the source's own default applies.
func NegotiateBlocksize(configured int, sink Sink, fallback int) int {
	if configured > 0 {
		return configured
	}
	if sink != nil {
		if b := sink.Blocksize(); b > 0 {
			return b
		}
	}
	return fallback
}
