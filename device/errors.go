// SPDX-License-Identifier: EPL-2.0

package device

import "errors"

var (
	ErrDeviceNotFound = errors.New("audio device not found")
	ErrAlreadyRunning = errors.New("stream is already running")
)
