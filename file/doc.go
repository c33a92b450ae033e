// SPDX-License-Identifier: EPL-2.0

// Package file turns audio files into sources and sinks for the pipeline.
//
// # Supported Formats
//
// Decoding (sources):
//   - WAV (PCM 16-bit) via github.com/go-audio/wav
//   - MP3 via github.com/hajimehoshi/go-mp3
//   - Ogg Vorbis via github.com/jfreymuth/oggvorbis
//   - AIFF (PCM 16-bit) via github.com/go-audio/aiff
//
// Encoding (sinks):
//   - WAV (PCM 16-bit) via github.com/go-audio/wav
//
// # Playing a File
//
//	player, _ := device.NewPlayerSink(device.PlayerConfig{
//	    Format: audio.Format{Rate: 44100, Channels: 2},
//	})
//	src, _ := file.Open(player, "music.mp3", file.Config{})
//
// Open picks the decoder by extension; the New*Source constructors pick
// it explicitly. Register adds custom decoders to the extension table.
//
// # Streaming a File
//
// A file decodes much faster than it plays. When the destination is a
// network sink with no natural pacing, set Realtime so chunks are pushed
// at playback speed:
//
//	src, _ := file.Open(netSink, "announcement.wav", file.Config{Realtime: true})
//
// # Recording
//
// WAVSink records whatever is pushed into it and finalizes the WAV header
// on Close:
//
//	rec, _ := file.NewWAVSink("call.wav", file.WAVSinkConfig{
//	    Format: audio.Format{Rate: 16000, Channels: 1},
//	})
package file
