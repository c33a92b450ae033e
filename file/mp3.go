// SPDX-License-Identifier: EPL-2.0

package file

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/kitchensink-io/kitchensink/audio"
)

// mp3Reader adapts a go-mp3 decoder to the reader interface. go-mp3
// always emits stereo 16-bit little-endian PCM, consumed here as a plain
// byte stream.
type mp3Reader struct {
	f    *os.File
	pcm  io.Reader
	fmtt audio.Format
	buf  []byte
}

// NewMP3Source builds a source that decodes an MP3 file.
func NewMP3Source(sink audio.Sink, path string, cfg Config) (*Source, error) {
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

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w", err)
	}

	r := &mp3Reader{
		f:    f,
		pcm:  dec,
		fmtt: audio.Format{Rate: dec.SampleRate(), Channels: 2},
	}
	return newSource(sink, r, cfg), nil
}

func (r *mp3Reader) format() audio.Format { return r.fmtt }
func (r *mp3Reader) close() error         { return r.f.Close() }

func (r *mp3Reader) readPCM(dst []int16) (int, error) {
	need := len(dst) * 2
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	r.buf = r.buf[:need]

	n, err := io.ReadFull(r.pcm, r.buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w", err)
	}

	samples := n / 2
	if samples == 0 {
		return 0, io.EOF
	}
	for i := range samples {
		dst[i] = int16(binary.LittleEndian.Uint16(r.buf[2*i:]))
	}
	return samples, nil
}
