// SPDX-License-Identifier: EPL-2.0

package tcp

import "errors"

var (
	ErrAlreadyRunning = errors.New("already running")
	ErrAddrRequired   = errors.New("server address is required")
)
