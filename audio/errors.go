// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrNilSink           = errors.New("sink must not be nil")
	ErrClosed            = errors.New("component is closed")
	ErrInvalidFormat     = errors.New("invalid audio format")
	ErrChannelConversion = errors.New("unsupported channel conversion")
)
