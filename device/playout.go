// SPDX-License-Identifier: EPL-2.0

package device

import "sync"

// playout buffers pushed chunks for the output stream callback. The
// callback pulls exactly the number of samples the device asks for,
// spanning chunk boundaries and filling with silence on underrun.
type playout struct {
	mu        sync.Mutex
	chunks    [][]int16
	offset    int // consumed samples of chunks[0]
	underruns int64
}

func (p *playout) push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	p.chunks = append(p.chunks, samples)
	p.mu.Unlock()
}

// fill copies buffered samples into out, zero-filling whatever remains
// once the buffer runs dry.
func (p *playout) fill(out []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := 0
	for pos < len(out) {
		if len(p.chunks) == 0 {
			for i := pos; i < len(out); i++ {
				out[i] = 0
			}
			if pos < len(out) {
				p.underruns++
			}
			return
		}

		head := p.chunks[0]
		n := copy(out[pos:], head[p.offset:])
		pos += n
		p.offset += n

		if p.offset >= len(head) {
			p.chunks = p.chunks[1:]
			p.offset = 0
		}
	}
}

func (p *playout) clear() {
	p.mu.Lock()
	p.chunks = nil
	p.offset = 0
	p.mu.Unlock()
}

// buffered returns the number of samples waiting to be played.
func (p *playout) buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := -p.offset
	for _, c := range p.chunks {
		total += len(c)
	}
	if total < 0 {
		return 0
	}
	return total
}

func (p *playout) underrunCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.underruns
}
