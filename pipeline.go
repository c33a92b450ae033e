// SPDX-License-Identifier: EPL-2.0

package kitchensink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kitchensink-io/kitchensink/audio"
)

// Stage wraps a sink with a middleware, e.g.
//
//	func(next audio.Sink) audio.Sink { g, _ := middleware.NewGain(next, 1.5); return g }
type Stage func(next audio.Sink) audio.Sink

// Chain applies stages to dst from the inside out, so the first stage is
// the one a source pushes into.
func Chain(dst audio.Sink, stages ...Stage) audio.Sink {
	s := dst
	for i := len(stages) - 1; i >= 0; i-- {
		s = stages[i](s)
	}
	return s
}

// Pipeline binds one source to its sink chain and manages the combined
// lifecycle: the sink starts before the source (so no chunk is pushed
// into a dead sink) and stops after it.
type Pipeline struct {
	src    audio.Source
	sink   audio.Sink
	logger *slog.Logger
}

// New builds a pipeline. The source must already be constructed over the
// sink; the pipeline only sequences Start/Stop/Close.
func New(src audio.Source, sink audio.Sink) (*Pipeline, error) {
	if sink == nil {
		return nil, audio.ErrNilSink
	}
	if src == nil {
		return nil, ErrNilSource
	}
	return &Pipeline{src: src, sink: sink, logger: slog.Default()}, nil
}

// SetLogger replaces the pipeline's logger.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Start brings the pipeline up: sink first, then source. On source
// failure the sink is closed again.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.sink.Start(ctx); err != nil {
		return fmt.Errorf("starting sink: %w", err)
	}
	if err := p.src.Start(ctx); err != nil {
		p.sink.Close()
		return fmt.Errorf("starting source: %w", err)
	}
	p.logger.Info("pipeline running",
		"format", fmt.Sprintf("%dHz/%dch", p.src.Format().Rate, p.src.Format().Channels))
	return nil
}

// Stop tears the pipeline down: source first, then sink.
func (p *Pipeline) Stop() error {
	serr := p.src.Stop()
	kerr := p.sink.Close()
	if serr != nil {
		return fmt.Errorf("stopping source: %w", serr)
	}
	if kerr != nil {
		return fmt.Errorf("closing sink: %w", kerr)
	}
	p.logger.Info("pipeline stopped")
	return nil
}

// Run starts the pipeline, waits for ctx to be cancelled and tears it
// down again.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return p.Stop()
}
