// SPDX-License-Identifier: EPL-2.0

// Package middleware provides sinks that observe or transform chunks on
// their way into another sink.
//
// A middleware is both a sink (it accepts PushChunk) and, conceptually, a
// source for the sink it wraps. Chains are built inside-out:
//
//	player, _ := device.NewPlayerSink(device.PlayerConfig{Format: f})
//	meter, _ := middleware.NewMeter(player)
//	gain, _ := middleware.NewGain(meter, 1.5)
//	src, _ := tcp.NewServerSource(gain, tcp.ServerConfig{Addr: ":8123"})
//
// Start, Clear and Close propagate down the chain, so the outermost sink
// is the only one the application needs to manage.
//
// Available middleware:
//   - Gain: amplify or attenuate with int16 clamping
//   - Tee: fan chunks out to several sinks
//   - Meter: peak/RMS levels and chunk counters, non-modifying
//
// Format conversion lives in the audio package (audio.Converter) because
// the core resampling machinery is defined there.
package middleware
