// SPDX-License-Identifier: EPL-2.0

// Package ws streams audio over WebSocket connections in two flavors.
//
// # Raw transport
//
// ServerSource and ClientSink exchange raw PCM16-LE bytes as binary
// messages, one chunk per message. This is the low-overhead path for
// audio-only links.
//
// # Typed transport
//
// TypedServerSource and TypedClientSink wrap every message in a JSON
// envelope:
//
//	{"type": "audio", "payload": "<base64 PCM16-LE>"}
//	{"type": "text",  "payload": "hello"}
//
// Audio envelopes are decoded and pushed to the sink; any other type is
// dispatched to the receiver's MessageHandler, so a single connection can
// carry an audio stream plus control or text traffic.
//
// # Attached components
//
// Source and Sink operate on a pre-existing *websocket.Conn without
// managing its lifecycle. They are the pieces to reach for inside an
// existing client or server handler — for example, to run a loopback on
// one connection:
//
//	src, _ := ws.NewSource(sink, conn, ws.SourceConfig{})
//	snd, _ := ws.NewSink(conn, ws.SinkConfig{})
//
// Neither will close a connection it did not open.
package ws
