// Package jpeg implements a resumable baseline JPEG engine for streamdec.
//
// The engine decodes one MCU row at a time and publishes rows as soon as
// the entropy-coded data for them has arrived. Bytes that have been decoded
// are discarded, so memory use does not grow with the compressed size.
package jpeg

import (
	"errors"
	"sync"

	"github.com/gen2brain/streamdec"
)

// Standard error types for JPEG decoding.
var (
	ErrNoJPEG      = errors.New("not a JPEG file")
	ErrUnsupported = errors.New("unsupported format")
	ErrOutOfMemory = errors.New("out of memory")
	ErrSyntax      = errors.New("syntax error")
)

// errNeedData unwinds the decoder to the last checkpoint when input runs out.
var errNeedData = errors.New("need more data")

// DefaultMaxPixels is the default limit on width*height.
const DefaultMaxPixels = 1 << 28

// Options specifies engine parameters.
type Options struct {
	// MaxPixels limits width*height. Larger images fail with StatusOutOfMemory.
	// Zero means DefaultMaxPixels.
	MaxPixels int
}

// vlcTables is the set of four Huffman lookup tables (DC 0-1, AC 2-3).
type vlcTables [4][65536]vlcCode

// vlcPool reuses Huffman lookup tables across decoders.
var vlcPool = sync.Pool{
	New: func() interface{} {
		return new(vlcTables)
	},
}

// NewFactory returns an engine factory using opts.
func NewFactory(opts *Options) streamdec.EngineFactory {
	return func(mode streamdec.OutputMode) (streamdec.Engine, error) {
		return NewDecoder(mode, opts)
	}
}

// NewEngine is an engine factory with default options.
func NewEngine(mode streamdec.OutputMode) (streamdec.Engine, error) {
	return NewDecoder(mode, nil)
}

func init() {
	streamdec.RegisterFormat("jpeg", "\xff\xd8", NewEngine)
}
