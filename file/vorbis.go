// SPDX-License-Identifier: EPL-2.0

package file

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/kitchensink-io/kitchensink/audio"
	"github.com/kitchensink-io/kitchensink/utils"
)

// floatDecoder is the read surface of oggvorbis.Reader.
type floatDecoder interface {
	Read(p []float32) (int, error)
}

// vorbisReader adapts an oggvorbis reader to the reader interface. The
// decoder yields normalized float32 samples, converted here to int16.
type vorbisReader struct {
	f    *os.File
	dec  floatDecoder
	fmtt audio.Format
	buf  []float32
}

// NewVorbisSource builds a source that decodes an Ogg Vorbis file.
func NewVorbisSource(sink audio.Sink, path string, cfg Config) (*Source, error) {
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

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w", err)
	}

	r := &vorbisReader{
		f:    f,
		dec:  dec,
		fmtt: audio.Format{Rate: dec.SampleRate(), Channels: dec.Channels()},
	}
	return newSource(sink, r, cfg), nil
}

func (r *vorbisReader) format() audio.Format { return r.fmtt }
func (r *vorbisReader) close() error         { return r.f.Close() }

func (r *vorbisReader) readPCM(dst []int16) (int, error) {
	if cap(r.buf) < len(dst) {
		r.buf = make([]float32, len(dst))
	}
	r.buf = r.buf[:len(dst)]

	n, err := r.dec.Read(r.buf)
	if n == 0 {
		if err == io.EOF || err == nil {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%w", err)
	}

	for i := range n {
		dst[i] = utils.Float32ToInt16(r.buf[i])
	}
	return n, nil
}
