// SPDX-License-Identifier: EPL-2.0

package ws

import "errors"

var (
	ErrNilConn        = errors.New("websocket connection is required")
	ErrURLRequired    = errors.New("websocket URL is required")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotAudio       = errors.New("message is not an audio message")
)
