// SPDX-License-Identifier: EPL-2.0

package file

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kitchensink-io/kitchensink/audio"
)

// OpenFunc constructs a Source for a file, the shape all the New*Source
// constructors share.
type OpenFunc func(sink audio.Sink, path string, cfg Config) (*Source, error)

var openers = struct {
	mtx sync.Mutex
	m   map[string]OpenFunc
}{m: make(map[string]OpenFunc)}

// Register associates a file extension (".wav") with an opener.
// Applications can register their own decoders next to the built-in ones.
func Register(ext string, fn OpenFunc) {
	openers.mtx.Lock()
	defer openers.mtx.Unlock()

	openers.m[strings.ToLower(ext)] = fn
}

func init() {
	Register(".wav", NewWAVSource)
	Register(".mp3", NewMP3Source)
	Register(".ogg", NewVorbisSource)
	Register(".oga", NewVorbisSource)
	Register(".aiff", NewAIFFSource)
	Register(".aif", NewAIFFSource)
}

// Open builds a source for path, picking the decoder by file extension.
func Open(sink audio.Sink, path string, cfg Config) (*Source, error) {
	ext := strings.ToLower(filepath.Ext(path))

	openers.mtx.Lock()
	fn, ok := openers.m[ext]
	openers.mtx.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return fn(sink, path, cfg)
}
