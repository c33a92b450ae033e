// SPDX-License-Identifier: EPL-2.0

package middleware

import (
	"context"
	"fmt"
	"sync"

	"github.com/kitchensink-io/kitchensink/audio"
)

// Gain scales samples by a factor on their way into the next sink,
// clamping to the int16 range. A factor of 1.0 forwards chunks untouched.
type Gain struct {
	next audio.Sink

	mu     sync.RWMutex
	factor float32
}

// NewGain wraps next with a gain stage.
func NewGain(next audio.Sink, factor float32) (*Gain, error) {
	if next == nil {
		return nil, audio.ErrNilSink
	}
	return &Gain{next: next, factor: factor}, nil
}

// SetFactor changes the gain factor for subsequent chunks.
func (g *Gain) SetFactor(factor float32) {
	g.mu.Lock()
	g.factor = factor
	g.mu.Unlock()
}

// Factor returns the current gain factor.
func (g *Gain) Factor() float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.factor
}

func (g *Gain) Start(ctx context.Context) error { return g.next.Start(ctx) }
func (g *Gain) Format() audio.Format            { return g.next.Format() }
func (g *Gain) Blocksize() int                  { return g.next.Blocksize() }
func (g *Gain) Clear()                          { g.next.Clear() }
func (g *Gain) Close() error                    { return g.next.Close() }

func (g *Gain) PushChunk(c audio.Chunk) error {
	factor := g.Factor()
	if factor == 1.0 {
		return g.next.PushChunk(c)
	}

	scaled := make([]int16, len(c.Samples))
	for i, s := range c.Samples {
		v := float32(s) * factor
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		scaled[i] = int16(v)
	}

	err := g.next.PushChunk(audio.Chunk{Samples: scaled, Format: c.Format})
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
