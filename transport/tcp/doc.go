// SPDX-License-Identifier: EPL-2.0

// Package tcp streams raw PCM16-LE audio over TCP connections.
//
// ServerSource listens for clients and turns their byte streams into
// chunks: each chunk is exactly blocksize*channels*2 bytes, read with
// io.ReadFull, so the chunk size doubles as the only framing. An optional
// gain factor amplifies incoming audio before it is pushed.
//
// ClientSink is the matching producer side: it dials a server and writes
// each pushed chunk's bytes to the socket from a background goroutine.
//
// There is no retry or reconnect logic; a broken connection ends the
// stream and, on the server side, fires the disconnect callback.
package tcp
