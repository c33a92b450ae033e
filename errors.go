// SPDX-License-Identifier: EPL-2.0

package kitchensink

import "errors"

var (
	ErrNilSource = errors.New("source must not be nil")
)
