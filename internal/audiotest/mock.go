// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides sinks and chunk generators for tests.
package audiotest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kitchensink-io/kitchensink/audio"
)

// CollectSink records every chunk pushed into it. Errors can be injected
// via StartErr and PushErr to exercise failure paths.
type CollectSink struct {
	format    audio.Format
	blocksize int

	StartErr error
	PushErr  error

	mu      sync.Mutex
	chunks  []audio.Chunk
	started bool
	closed  bool
	cleared int
}

// NewCollectSink builds a collecting sink advertising the given format
// and blocksize preference.
func NewCollectSink(format audio.Format, blocksize int) *CollectSink {
	return &CollectSink{format: format, blocksize: blocksize}
}

func (s *CollectSink) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.started = true
	return nil
}

func (s *CollectSink) PushChunk(c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PushErr != nil {
		return s.PushErr
	}
	if s.closed {
		return audio.ErrClosed
	}
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *CollectSink) Format() audio.Format { return s.format }
func (s *CollectSink) Blocksize() int       { return s.blocksize }

func (s *CollectSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.cleared++
}

func (s *CollectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Chunks returns a snapshot of the collected chunks.
func (s *CollectSink) Chunks() []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Samples returns all collected samples concatenated.
func (s *CollectSink) Samples() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int16
	for _, c := range s.chunks {
		out = append(out, c.Samples...)
	}
	return out
}

// Started reports whether Start was called.
func (s *CollectSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether Close was called.
func (s *CollectSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Cleared reports how many times Clear was called.
func (s *CollectSink) Cleared() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// SilentChunk generates a chunk of zeros.
func SilentChunk(f audio.Format, frames int) audio.Chunk {
	return audio.Chunk{Samples: make([]int16, frames*f.Channels), Format: f}
}

// ConstantChunk generates a chunk with every sample set to v.
func ConstantChunk(f audio.Format, frames int, v int16) audio.Chunk {
	samples := make([]int16, frames*f.Channels)
	for i := range samples {
		samples[i] = v
	}
	return audio.Chunk{Samples: samples, Format: f}
}

// SineChunk generates frames of a sine wave starting at startFrame, so
// consecutive calls produce a continuous tone.
func SineChunk(f audio.Format, frames int, freq float64, startFrame int) audio.Chunk {
	samples := make([]int16, frames*f.Channels)
	for i := range frames {
		t := float64(startFrame+i) / float64(f.Rate)
		v := int16(math.Sin(2*math.Pi*freq*t) * 16000)
		for c := range f.Channels {
			samples[i*f.Channels+c] = v
		}
	}
	return audio.Chunk{Samples: samples, Format: f}
}

// Eventually polls cond until it returns true or the timeout expires.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
