// SPDX-License-Identifier: EPL-2.0

package file

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	gaudio "github.com/go-audio/audio"

	"github.com/kitchensink-io/kitchensink/audio"
)

// aiffReader adapts a go-audio AIFF decoder to the reader interface.
type aiffReader struct {
	f      *os.File
	dec    pcmDecoder
	fmtt   audio.Format
	intBuf *gaudio.IntBuffer
}

// NewAIFFSource builds a source that decodes a 16-bit PCM AIFF file.
func NewAIFFSource(sink audio.Sink, path string, cfg Config) (*Source, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if path == "" {
		return nil, ErrPathRequired
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotValidFile, path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w", err)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit", ErrOnlyPCM16bitSupported, dec.BitDepth)
	}

	r := &aiffReader{
		f:    f,
		dec:  dec,
		fmtt: audio.Format{Rate: int(dec.SampleRate), Channels: int(dec.NumChans)},
	}
	return newSource(sink, r, cfg), nil
}

func (r *aiffReader) format() audio.Format { return r.fmtt }
func (r *aiffReader) close() error         { return r.f.Close() }

func (r *aiffReader) readPCM(dst []int16) (int, error) {
	if r.intBuf == nil || len(r.intBuf.Data) != len(dst) {
		r.intBuf = &gaudio.IntBuffer{
			Data: make([]int, len(dst)),
			Format: &gaudio.Format{
				NumChannels: r.fmtt.Channels,
				SampleRate:  r.fmtt.Rate,
			},
		}
	}

	n, err := r.dec.PCMBuffer(r.intBuf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("%w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := range n {
		dst[i] = int16(r.intBuf.Data[i])
	}
	return n, nil
}
