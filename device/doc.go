// SPDX-License-Identifier: EPL-2.0

// Package device binds the pipeline to local audio hardware via PortAudio.
//
// CaptureSource produces chunks from a microphone or line-in; PlayerSink
// plays chunks through the speakers. Both are thin adapters over
// callback-driven PortAudio streams: the capture callback copies each
// device buffer into a chunk and pushes it, and the playback callback
// pulls samples out of a playout buffer, filling with silence when it
// runs dry.
//
// Devices are selected by a case-insensitive substring of the PortAudio
// device name. When no device is configured, the KS_INPUT_DEVICE and
// KS_OUTPUT_DEVICE environment variables are consulted before falling
// back to the system default. ListInputDevices and ListOutputDevices
// enumerate what is available.
//
// PortAudio needs a native library at build time (portaudio19-dev on
// Debian, `brew install portaudio` on macOS).
package device
