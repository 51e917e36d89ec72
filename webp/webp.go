// Package webp implements a streamdec engine for WebP images backed by
// golang.org/x/image/webp.
//
// The x/image decoder is not resumable, so the engine buffers the RIFF
// container until it is complete and then publishes every row at once.
// The frame size is known as soon as the headers have arrived.
package webp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/gen2brain/streamdec"
)

// Standard error types for WebP decoding.
var (
	ErrNoWebP      = errors.New("not a WebP file")
	ErrOutOfMemory = errors.New("out of memory")
	ErrTooLarge    = errors.New("RIFF container too large")
	ErrUnsupported = errors.New("unsupported WebP feature")
)

// vp8xAnimation is the animation bit of the VP8X flags byte.
const vp8xAnimation = 0x02

// DefaultMaxPixels is the default limit on width*height.
const DefaultMaxPixels = 1 << 28

// DefaultMaxBytes is the default limit on the RIFF container size.
const DefaultMaxBytes = 1 << 30

// riffHeaderSize is the size of "RIFF", the payload length and "WEBP".
const riffHeaderSize = 12

// Options specifies engine parameters.
type Options struct {
	// MaxPixels limits width*height. Zero means DefaultMaxPixels.
	MaxPixels int
	// MaxBytes limits the container size. Zero means DefaultMaxBytes.
	MaxBytes int
}

// Decoder is a streamdec.Engine for WebP.
type Decoder struct {
	mode      streamdec.OutputMode
	maxPixels int
	maxBytes  int

	buf    []byte
	need   int // container size, 0 until the RIFF header is read
	config image.Config
	sized  bool

	pix    []byte
	stride int
	done   bool
	err    error
	closed bool
}

// NewDecoder returns a decoder producing pixels in mode.
func NewDecoder(mode streamdec.OutputMode, opts *Options) (*Decoder, error) {
	if mode != streamdec.ModePremultipliedRGBA && mode != streamdec.ModeRGBA {
		return nil, fmt.Errorf("webp: unsupported output mode %v", mode)
	}

	d := &Decoder{mode: mode, maxPixels: DefaultMaxPixels, maxBytes: DefaultMaxBytes}
	if opts != nil {
		if opts.MaxPixels > 0 {
			d.maxPixels = opts.MaxPixels
		}

		if opts.MaxBytes > 0 {
			d.maxBytes = opts.MaxBytes
		}
	}

	return d, nil
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
	streamdec.RegisterFormat("webp", "RIFF????WEBPVP8", NewEngine)
}

// Append consumes the next piece of the stream.
func (d *Decoder) Append(p []byte) streamdec.Status {
	switch {
	case d.closed:
		return streamdec.StatusInvalidParam
	case d.err != nil:
		return statusOf(d.err)
	case d.done:
		return streamdec.StatusOK
	}

	d.buf = append(d.buf, p...)

	if err := d.advance(); err != nil {
		d.err = err
		d.buf = nil

		return statusOf(err)
	}

	if d.done {
		return streamdec.StatusOK
	}

	return streamdec.StatusSuspended
}

// advance parses whatever the buffered input allows.
func (d *Decoder) advance() error {
	if d.need == 0 {
		if len(d.buf) < riffHeaderSize {
			return nil
		}

		if string(d.buf[0:4]) != "RIFF" || string(d.buf[8:12]) != "WEBP" {
			return ErrNoWebP
		}

		size := int(binary.LittleEndian.Uint32(d.buf[4:8]))
		if size < 4 {
			return ErrNoWebP
		}

		if size+8 > d.maxBytes {
			return fmt.Errorf("%d bytes: %w", size+8, ErrTooLarge)
		}

		d.need = size + 8
	}

	if !d.sized {
		// x/image rejects animations with the same error as corrupt input.
		if len(d.buf) > 20 && string(d.buf[12:16]) == "VP8X" && d.buf[20]&vp8xAnimation != 0 {
			return fmt.Errorf("animation: %w", ErrUnsupported)
		}

		cfg, err := webp.DecodeConfig(bytes.NewReader(d.buf))
		if err == nil {
			if cfg.Width*cfg.Height > d.maxPixels {
				return fmt.Errorf("%dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, d.maxPixels, ErrOutOfMemory)
			}

			d.config = cfg
			d.sized = true
		} else if len(d.buf) >= d.need {
			return err
		}
	}

	if len(d.buf) < d.need {
		return nil
	}

	img, err := webp.Decode(bytes.NewReader(d.buf[:d.need]))
	if err != nil {
		return err
	}

	d.pix, d.stride = d.convert(img)
	d.config.Width, d.config.Height = img.Bounds().Dx(), img.Bounds().Dy()
	d.sized = true
	d.done = true
	d.buf = nil

	return nil
}

// convert copies img into a tightly packed RGBA buffer in the decoder's mode.
func (d *Decoder) convert(img image.Image) ([]byte, int) {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())

	if d.mode == streamdec.ModeRGBA {
		dst := image.NewNRGBA(r)
		draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)

		return dst.Pix, dst.Stride
	}

	dst := image.NewRGBA(r)
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)

	return dst.Pix, dst.Stride
}

// Progress reports the decoded rows: none until the container is complete,
// then all of them.
func (d *Decoder) Progress() streamdec.Progress {
	if !d.done || d.pix == nil {
		return streamdec.NoProgress
	}

	return streamdec.Progress{
		LastRow: d.config.Height - 1,
		Width:   d.config.Width,
		Height:  d.config.Height,
		Stride:  d.stride,
		Pix:     d.pix,
	}
}

// Config returns the image configuration once the headers have been read.
func (d *Decoder) Config() (image.Config, bool) {
	return d.config, d.sized
}

// Err returns the error that stopped the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the decoder buffers.
func (d *Decoder) Close() {
	d.closed = true
	d.buf = nil
	d.pix = nil
}

// statusOf maps engine errors to statuses. Errors returned by x/image/webp
// are plain errors.New values and all describe malformed input.
func statusOf(err error) streamdec.Status {
	switch {
	case errors.Is(err, ErrOutOfMemory), errors.Is(err, ErrTooLarge):
		return streamdec.StatusOutOfMemory
	case errors.Is(err, ErrUnsupported):
		return streamdec.StatusUnsupportedFeature
	default:
		return streamdec.StatusBitstreamError
	}
}
