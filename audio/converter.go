// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"fmt"
	"math"

	"github.com/kitchensink-io/kitchensink/utils"
)

// Converter is a sink that converts chunks from a source format to a
// destination format before forwarding them to the next sink. Sample rate
// conversion uses cubic (Catmull-Rom) interpolation with a one-pole
// low-pass filter when downsampling. Channel conversion supports mono to
// N-channel duplication and N-channel to mono averaging.
//
// The conversion is streaming: the interpolation window is carried across
// chunk boundaries, so chunks of any size can be pushed. Each pushed chunk
// produces at most one output chunk.
type Converter struct {
	next Sink
	src  Format
	dst  Format

	passthrough bool

	ratio float64 // source frames per destination frame
	pos   float64 // absolute position in source frames
	base  int     // absolute index of win[0]
	win   [][]float32
	last  []float32 // most recent source frame, for tail flushing

	useFilter   bool
	filterAlpha float32
	filterState []float32
	primed      bool
	closed      bool
}

// NewConverter builds a Converter feeding next. Zero fields of dst inherit
// the corresponding src value, so a caller can request only a rate change
// or only a channel change.
func NewConverter(next Sink, src, dst Format) (*Converter, error) {
	if next == nil {
		return nil, ErrNilSink
	}
	if src.Rate <= 0 || src.Channels <= 0 {
		return nil, fmt.Errorf("%w: source %+v", ErrInvalidFormat, src)
	}
	if dst.Rate == 0 {
		dst.Rate = src.Rate
	}
	if dst.Channels == 0 {
		dst.Channels = src.Channels
	}
	if dst.Rate <= 0 || dst.Channels <= 0 {
		return nil, fmt.Errorf("%w: destination %+v", ErrInvalidFormat, dst)
	}
	if src.Channels != dst.Channels && src.Channels != 1 && dst.Channels != 1 {
		return nil, fmt.Errorf("%w: %d to %d channels", ErrChannelConversion, src.Channels, dst.Channels)
	}

	ratio := float64(src.Rate) / float64(dst.Rate)

	c := &Converter{
		next:        next,
		src:         src,
		dst:         dst,
		passthrough: src == dst,
		ratio:       ratio,
		filterState: make([]float32, src.Channels),
	}

	// One-pole low-pass against aliasing, only when downsampling.
	if ratio > 1.0 {
		c.useFilter = true
		c.filterAlpha = 0.5
	}

	return c, nil
}

// Format returns the format the converter expects to be pushed.
func (c *Converter) Format() Format { return c.src }

// Blocksize scales the next sink's preference back to source frames, so a
// source feeding the converter produces chunks that convert into chunks of
// the size the final sink prefers.
func (c *Converter) Blocksize() int {
	nb := c.next.Blocksize()
	if nb == 0 {
		return 0
	}
	return int(float64(nb)*c.ratio + 0.5)
}

func (c *Converter) Start(ctx context.Context) error { return c.next.Start(ctx) }

// PushChunk converts the chunk and forwards the result. Chunks that
// convert to zero frames (tiny chunks under heavy downsampling) are
// absorbed into the interpolation window and produce no output.
func (c *Converter) PushChunk(chunk Chunk) error {
	if c.closed {
		return ErrClosed
	}
	if c.passthrough {
		return c.next.PushChunk(chunk)
	}

	c.ingest(chunk.Samples)
	return c.emit()
}

// ingest appends the chunk's frames to the interpolation window,
// normalizing to float32 and applying the anti-aliasing filter.
func (c *Converter) ingest(samples []int16) {
	ch := c.src.Channels
	frames := len(samples) / ch

	for f := range frames {
		frame := make([]float32, ch)
		for i := range ch {
			frame[i] = utils.Int16ToFloat32(samples[f*ch+i])
		}

		if c.useFilter {
			if !c.primed && len(c.win) == 0 {
				copy(c.filterState, frame)
			}
			for i := range ch {
				frame[i] = c.filterAlpha*frame[i] + (1-c.filterAlpha)*c.filterState[i]
				c.filterState[i] = frame[i]
			}
		}

		if !c.primed {
			// Duplicate the first frame so interpolation has a
			// t-1 neighbour at the start of the stream.
			c.win = append(c.win, frame)
			c.base = -1
			c.primed = true
		}
		c.win = append(c.win, frame)
		c.last = frame
	}
}

// emit interpolates as many destination frames as the window allows and
// pushes them downstream in a single chunk.
func (c *Converter) emit() error {
	var out []int16

	for {
		i := int(math.Floor(c.pos))
		if i+2 > c.base+len(c.win)-1 {
			break
		}
		idx := i - c.base
		alpha := float32(c.pos - float64(i))

		y0 := c.win[idx-1]
		y1 := c.win[idx]
		y2 := c.win[idx+1]
		y3 := c.win[idx+2]

		out = c.appendFrame(out, y0, y1, y2, y3, alpha)
		c.pos += c.ratio
	}

	// Drop frames the interpolation window no longer needs.
	if keep := int(math.Floor(c.pos)) - 1; keep > c.base {
		n := keep - c.base
		if n > len(c.win) {
			n = len(c.win)
		}
		c.win = c.win[n:]
		c.base += n
	}

	if len(out) == 0 {
		return nil
	}
	return c.next.PushChunk(Chunk{Samples: out, Format: c.dst})
}

// appendFrame interpolates one source-channel frame and appends it to out
// remixed to the destination channel count.
func (c *Converter) appendFrame(out []int16, y0, y1, y2, y3 []float32, alpha float32) []int16 {
	srcCh := c.src.Channels
	dstCh := c.dst.Channels

	switch {
	case srcCh == dstCh:
		for i := range srcCh {
			v := utils.CubicInterpolate(y0[i], y1[i], y2[i], y3[i], alpha)
			out = append(out, utils.Float32ToInt16(v))
		}
	case srcCh == 1:
		v := utils.Float32ToInt16(utils.CubicInterpolate(y0[0], y1[0], y2[0], y3[0], alpha))
		for range dstCh {
			out = append(out, v)
		}
	default: // dstCh == 1: average the source channels
		var sum float32
		for i := range srcCh {
			sum += utils.CubicInterpolate(y0[i], y1[i], y2[i], y3[i], alpha)
		}
		out = append(out, utils.Float32ToInt16(sum/float32(srcCh)))
	}
	return out
}

// Clear resets the interpolation state and clears the next sink.
func (c *Converter) Clear() {
	c.win = nil
	c.base = 0
	c.pos = 0
	c.primed = false
	c.last = nil
	for i := range c.filterState {
		c.filterState[i] = 0
	}
	c.next.Clear()
}

// Close flushes the tail of the stream by extending the window with copies
// of the last frame, then closes the next sink.
func (c *Converter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if !c.passthrough && c.last != nil {
		c.win = append(c.win, c.last, c.last)
		if err := c.emit(); err != nil {
			c.next.Close()
			return fmt.Errorf("%w", err)
		}
	}

	err := c.next.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
