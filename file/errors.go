// SPDX-License-Identifier: EPL-2.0

package file

import "errors"

var (
	ErrUnknownFormat         = errors.New("unknown audio file format")
	ErrNotValidFile          = errors.New("not a valid audio file")
	ErrOnlyPCM16bitSupported = errors.New("only PCM 16-bit supported")
	ErrPathRequired          = errors.New("file path is required")
	ErrAlreadyRunning        = errors.New("source already running")
)
