// SPDX-License-Identifier: EPL-2.0

package file

import (
	"bytes"
	"errors"
	"io"
	"testing"

	gaudio "github.com/go-audio/audio"

	"github.com/kitchensink-io/kitchensink/audio"
)

// fakePCMDecoder serves canned samples through the go-audio PCMBuffer
// surface shared by the WAV and AIFF decoders.
type fakePCMDecoder struct {
	samples []int
	pos     int
	err     error
}

func (d *fakePCMDecoder) PCMBuffer(buf *gaudio.IntBuffer) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.pos >= len(d.samples) {
		return 0, nil
	}
	n := copy(buf.Data, d.samples[d.pos:])
	d.pos += n
	return n, nil
}

func TestWAVReaderPCM(t *testing.T) {
	t.Parallel()

	r := &wavReader{
		dec:  &fakePCMDecoder{samples: []int{1, -2, 3, -4, 5}},
		fmtt: audio.Format{Rate: 16000, Channels: 1},
	}

	dst := make([]int16, 4)
	n, err := r.readPCM(dst)
	if err != nil || n != 4 {
		t.Fatalf("readPCM = %d, %v; want 4, nil", n, err)
	}
	for i, want := range []int16{1, -2, 3, -4} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}

	n, err = r.readPCM(dst)
	if err != nil || n != 1 || dst[0] != 5 {
		t.Fatalf("second readPCM = %d, %v (dst[0]=%d); want 1, nil, 5", n, err, dst[0])
	}

	if _, err := r.readPCM(dst); !errors.Is(err, io.EOF) {
		t.Errorf("drained readPCM err = %v, want io.EOF", err)
	}
}

func TestWAVReaderPCMError(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New("corrupt block")
	r := &wavReader{
		dec:  &fakePCMDecoder{err: decodeErr},
		fmtt: audio.Format{Rate: 16000, Channels: 1},
	}

	if _, err := r.readPCM(make([]int16, 4)); !errors.Is(err, decodeErr) {
		t.Errorf("readPCM err = %v, want the decoder's error", err)
	}
}

func TestAIFFReaderPCM(t *testing.T) {
	t.Parallel()

	r := &aiffReader{
		dec:  &fakePCMDecoder{samples: []int{100, 200, 300}},
		fmtt: audio.Format{Rate: 44100, Channels: 1},
	}

	dst := make([]int16, 3)
	n, err := r.readPCM(dst)
	if err != nil || n != 3 {
		t.Fatalf("readPCM = %d, %v; want 3, nil", n, err)
	}
	for i, want := range []int16{100, 200, 300} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}

	if _, err := r.readPCM(dst); !errors.Is(err, io.EOF) {
		t.Errorf("drained readPCM err = %v, want io.EOF", err)
	}
}

func TestMP3ReaderPCM(t *testing.T) {
	t.Parallel()

	// Interleaved stereo PCM16-LE: 1, -1, 256, -32768.
	data := []byte{
		0x01, 0x00,
		0xff, 0xff,
		0x00, 0x01,
		0x00, 0x80,
	}
	r := &mp3Reader{
		pcm:  bytes.NewReader(data),
		fmtt: audio.Format{Rate: 44100, Channels: 2},
	}

	dst := make([]int16, 4)
	n, err := r.readPCM(dst)
	if err != nil || n != 4 {
		t.Fatalf("readPCM = %d, %v; want 4, nil", n, err)
	}
	for i, want := range []int16{1, -1, 256, -32768} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}

	if _, err := r.readPCM(dst); !errors.Is(err, io.EOF) {
		t.Errorf("drained readPCM err = %v, want io.EOF", err)
	}
}

func TestMP3ReaderPCMShortTail(t *testing.T) {
	t.Parallel()

	// Six bytes against a four-sample request: the short final read must
	// surface the three whole samples before EOF.
	data := []byte{0x0a, 0x00, 0x0b, 0x00, 0x0c, 0x00}
	r := &mp3Reader{
		pcm:  bytes.NewReader(data),
		fmtt: audio.Format{Rate: 44100, Channels: 2},
	}

	dst := make([]int16, 4)
	n, err := r.readPCM(dst)
	if err != nil || n != 3 {
		t.Fatalf("readPCM = %d, %v; want 3, nil", n, err)
	}
	for i, want := range []int16{10, 11, 12} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}

	if _, err := r.readPCM(dst); !errors.Is(err, io.EOF) {
		t.Errorf("drained readPCM err = %v, want io.EOF", err)
	}
}

// fakeFloatDecoder serves canned normalized samples through the oggvorbis
// read surface.
type fakeFloatDecoder struct {
	samples []float32
	pos     int
	err     error
}

func (d *fakeFloatDecoder) Read(p []float32) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.pos >= len(d.samples) {
		return 0, io.EOF
	}
	n := copy(p, d.samples[d.pos:])
	d.pos += n
	return n, nil
}

func TestVorbisReaderPCM(t *testing.T) {
	t.Parallel()

	r := &vorbisReader{
		dec:  &fakeFloatDecoder{samples: []float32{0, 0.5, -0.5, 1, -1}},
		fmtt: audio.Format{Rate: 48000, Channels: 1},
	}

	dst := make([]int16, 5)
	n, err := r.readPCM(dst)
	if err != nil || n != 5 {
		t.Fatalf("readPCM = %d, %v; want 5, nil", n, err)
	}
	for i, want := range []int16{0, 16383, -16383, 32767, -32767} {
		diff := int(dst[i]) - int(want)
		if diff < -1 || diff > 1 {
			t.Errorf("dst[%d] = %d, want %d ±1", i, dst[i], want)
		}
	}

	if _, err := r.readPCM(dst); !errors.Is(err, io.EOF) {
		t.Errorf("drained readPCM err = %v, want io.EOF", err)
	}
}

func TestVorbisReaderPCMError(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New("bad packet")
	r := &vorbisReader{
		dec:  &fakeFloatDecoder{err: decodeErr},
		fmtt: audio.Format{Rate: 48000, Channels: 1},
	}

	if _, err := r.readPCM(make([]int16, 4)); !errors.Is(err, decodeErr) {
		t.Errorf("readPCM err = %v, want the decoder's error", err)
	}
}
