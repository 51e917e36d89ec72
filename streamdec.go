package streamdec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
)

// Options specifies session parameters.
type Options struct {
	// Order is the channel order of the destination surface. The zero value is OrderRGBA.
	Order ChannelOrder
	// TargetSize requests downscaling to the given size. The zero value keeps the frame size.
	TargetSize image.Point
	// SizeOnly stops decoding once the frame size is known.
	SizeOnly bool
	// ChunkSize is the read size used by Pump and Decode. Zero means DefaultChunkSize.
	ChunkSize int
	// Logger receives the session log records. Nil means slog.Default().
	Logger *slog.Logger
	// NewScaler creates the Scaler used when TargetSize is set. Nil means NewDownscaler.
	NewScaler func(target image.Point) Scaler
}

// DefaultChunkSize is the read size used when Options.ChunkSize is zero.
const DefaultChunkSize = 32 << 10

// chunkPool holds DefaultChunkSize read buffers.
var chunkPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultChunkSize)

		return &b
	},
}

// format holds an image format's name, magic header and engine factory.
type format struct {
	name, magic string
	factory     EngineFactory
}

var (
	formatsMu sync.RWMutex
	formats   []format
)

// RegisterFormat registers an image format for use by Decode and Sniff.
// Magic is the magic prefix that identifies the format's encoding. The magic
// string can contain "?" wildcards that each match any one byte.
func RegisterFormat(name, magic string, f EngineFactory) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	formats = append(formats, format{name: name, magic: magic, factory: f})
}

// match reports whether magic matches b. Magic may contain "?" wildcards.
func match(magic string, b []byte) bool {
	if len(magic) != len(b) {
		return false
	}

	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}

	return true
}

// Sniff returns the registered format whose magic prefixes b.
func Sniff(b []byte) (name string, f EngineFactory, ok bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	for _, fm := range formats {
		if len(b) >= len(fm.magic) && match(fm.magic, b[:len(fm.magic)]) {
			return fm.name, fm.factory, true
		}
	}

	return "", nil, false
}

// Lookup returns the engine factory registered under name.
func Lookup(name string) (EngineFactory, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	for _, fm := range formats {
		if fm.name == name {
			return fm.factory, true
		}
	}

	return nil, false
}

// maxMagic returns the length of the longest registered magic.
func maxMagic() int {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	n := 0
	for _, fm := range formats {
		n = max(n, len(fm.magic))
	}

	return n
}

// sniffReader peeks at the start of r and returns the matching format.
func sniffReader(r io.Reader) (*bufio.Reader, string, EngineFactory, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	b, err := br.Peek(maxMagic())
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", nil, err
	}

	name, f, ok := Sniff(b)
	if !ok {
		return nil, "", nil, ErrUnknownFormat
	}

	return br, name, f, nil
}

// Pump reads r in chunks of chunkSize bytes and feeds them to s until r is
// exhausted or the session stops, then finishes the session.
func Pump(s *Session, r io.Reader, chunkSize int) error {
	var buf []byte
	if chunkSize <= 0 || chunkSize == DefaultChunkSize {
		bufPtr := chunkPool.Get().(*[]byte)
		defer chunkPool.Put(bufPtr)
		buf = *bufPtr
	} else {
		buf = make([]byte, chunkSize)
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := s.Feed(buf[:n]); ferr != nil {
				return ferr
			}

			if s.State() == StateDone {
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			return s.Finish()
		}

		if err != nil {
			return fmt.Errorf("streamdec: read: %w", err)
		}
	}
}

// Decode decodes an image from r with the engine registered for its format.
// It returns the format name. On a data error the rows decoded so far are
// returned together with the error.
func Decode(r io.Reader, opts *Options) (image.Image, string, error) {
	br, name, f, err := sniffReader(r)
	if err != nil {
		return nil, "", err
	}

	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.SizeOnly = false

	canvas := &Canvas{}
	s, err := NewSession(f, canvas, withFormat(&o, name))
	if err != nil {
		return nil, name, err
	}
	defer s.Close()

	if err := Pump(s, br, o.ChunkSize); err != nil {
		if img := canvas.Image(); img != nil && IsDataError(err) {
			return img, name, err
		}

		return nil, name, err
	}

	return canvas.Image(), name, nil
}

// DecodeConfig returns the dimensions of an image without decoding all of it.
func DecodeConfig(r io.Reader) (image.Config, string, error) {
	br, name, f, err := sniffReader(r)
	if err != nil {
		return image.Config{}, "", err
	}

	canvas := &Canvas{}
	s, err := NewSession(f, canvas, withFormat(&Options{SizeOnly: true}, name))
	if err != nil {
		return image.Config{}, name, err
	}
	defer s.Close()

	if err := Pump(s, br, 0); err != nil {
		return image.Config{}, name, err
	}

	size := canvas.Size()

	return image.Config{ColorModel: color.RGBAModel, Width: size.X, Height: size.Y}, name, nil
}

// withFormat tags the logger of o with the format name.
func withFormat(o *Options, name string) *Options {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o.Logger = logger.With("format", name)

	return o
}
