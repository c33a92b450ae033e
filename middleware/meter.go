// SPDX-License-Identifier: EPL-2.0

package middleware

import (
	"context"
	"math"
	"sync"

	"github.com/kitchensink-io/kitchensink/audio"
)

// Levels is a snapshot of what a Meter has observed.
type Levels struct {
	Chunks int64   // chunks seen
	Frames int64   // frames seen
	Peak   float64 // peak amplitude in [0, 1] since the last snapshot
	RMS    float64 // root mean square amplitude of the last chunk
}

// Meter observes chunks in transit without modifying them. It tracks
// chunk and frame counters plus peak and RMS levels, which is handy for
// debugging a silent pipeline.
type Meter struct {
	next audio.Sink

	mu     sync.Mutex
	chunks int64
	frames int64
	peak   float64
	rms    float64
}

// NewMeter wraps next with a level meter.
func NewMeter(next audio.Sink) (*Meter, error) {
	if next == nil {
		return nil, audio.ErrNilSink
	}
	return &Meter{next: next}, nil
}

func (m *Meter) Start(ctx context.Context) error { return m.next.Start(ctx) }
func (m *Meter) Format() audio.Format            { return m.next.Format() }
func (m *Meter) Blocksize() int                  { return m.next.Blocksize() }
func (m *Meter) Clear()                          { m.next.Clear() }
func (m *Meter) Close() error                    { return m.next.Close() }

func (m *Meter) PushChunk(c audio.Chunk) error {
	m.observe(c)
	return m.next.PushChunk(c)
}

func (m *Meter) observe(c audio.Chunk) {
	var peak, sumsq float64
	for _, s := range c.Samples {
		v := math.Abs(float64(s)) / 32768.0
		if v > peak {
			peak = v
		}
		sumsq += v * v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks++
	m.frames += int64(c.Frames())
	if peak > m.peak {
		m.peak = peak
	}
	if len(c.Samples) > 0 {
		m.rms = math.Sqrt(sumsq / float64(len(c.Samples)))
	}
}

// Snapshot returns the current levels and resets the peak.
func (m *Meter) Snapshot() Levels {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := Levels{Chunks: m.chunks, Frames: m.frames, Peak: m.peak, RMS: m.rms}
	m.peak = 0
	return l
}
