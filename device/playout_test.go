// SPDX-License-Identifier: EPL-2.0

package device

import "testing"

func TestPlayoutFillSpansChunks(t *testing.T) {
	t.Parallel()

	var p playout
	p.push([]int16{1, 2, 3})
	p.push([]int16{4, 5})

	out := make([]int16, 4)
	p.fill(out)
	for i, want := range []int16{1, 2, 3, 4} {
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want)
		}
	}
	if got := p.buffered(); got != 1 {
		t.Errorf("buffered() = %d, want 1", got)
	}
}

func TestPlayoutUnderrunFillsSilence(t *testing.T) {
	t.Parallel()

	var p playout
	p.push([]int16{7, 8})

	out := []int16{-1, -1, -1, -1}
	p.fill(out)
	if out[0] != 7 || out[1] != 8 {
		t.Errorf("buffered samples = %d, %d; want 7, 8", out[0], out[1])
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("underrun tail = %d, %d; want silence", out[2], out[3])
	}
	if got := p.underrunCount(); got != 1 {
		t.Errorf("underrunCount() = %d, want 1", got)
	}

	// A fully empty buffer counts as one more underrun.
	p.fill(out)
	if got := p.underrunCount(); got != 2 {
		t.Errorf("underrunCount() = %d, want 2", got)
	}
}

func TestPlayoutClear(t *testing.T) {
	t.Parallel()

	var p playout
	p.push([]int16{1, 2, 3, 4})

	out := make([]int16, 2)
	p.fill(out)
	p.clear()

	if got := p.buffered(); got != 0 {
		t.Errorf("buffered() after clear = %d, want 0", got)
	}

	p.push([]int16{9})
	p.fill(out)
	if out[0] != 9 {
		t.Errorf("out[0] after clear = %d, want 9 (offset must reset)", out[0])
	}
}

func TestPlayoutPushEmpty(t *testing.T) {
	t.Parallel()

	var p playout
	p.push(nil)
	if got := p.buffered(); got != 0 {
		t.Errorf("buffered() = %d, want 0", got)
	}
}
