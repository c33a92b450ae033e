// SPDX-License-Identifier: EPL-2.0

package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/kitchensink-io/kitchensink/audio"
)

// Tee fans every chunk out to several sinks, so a single source can feed,
// say, the speakers and a WAV recording at the same time. Lifecycle calls
// are propagated to every sink; every sink is attempted even when one of
// them fails.
type Tee struct {
	sinks []audio.Sink
}

// NewTee builds a Tee over the given sinks. At least one sink is required.
func NewTee(sinks ...audio.Sink) (*Tee, error) {
	if len(sinks) == 0 {
		return nil, audio.ErrNilSink
	}
	for _, s := range sinks {
		if s == nil {
			return nil, audio.ErrNilSink
		}
	}
	return &Tee{sinks: sinks}, nil
}

func (t *Tee) Start(ctx context.Context) error {
	for _, s := range t.sinks {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("%w", err)
		}
	}
	return nil
}

func (t *Tee) PushChunk(c audio.Chunk) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.PushChunk(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Format returns the first sink's format; the caller is responsible for
// feeding sinks that agree on a format (or wrapping them in Converters).
func (t *Tee) Format() audio.Format { return t.sinks[0].Format() }

// Blocksize returns the largest preference among the sinks.
func (t *Tee) Blocksize() int {
	best := 0
	for _, s := range t.sinks {
		if b := s.Blocksize(); b > best {
			best = b
		}
	}
	return best
}

func (t *Tee) Clear() {
	for _, s := range t.sinks {
		s.Clear()
	}
}

func (t *Tee) Close() error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
