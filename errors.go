package streamdec

import (
	"errors"
	"fmt"
)

// ErrorKind is the kind of failure reported to the host.
type ErrorKind int

const (
	// KindData reports a corrupt bitstream. Rows delivered before the error stay valid.
	KindData ErrorKind = iota + 1
	// KindDecoder reports an engine failure or a broken internal invariant.
	KindDecoder
)

func (k ErrorKind) String() string {
	switch k {
	case KindData:
		return "DataError"
	case KindDecoder:
		return "DecoderError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Category refines an ErrorKind.
type Category int

const (
	CategoryCorruption Category = iota + 1
	CategoryResource
	CategoryDecoder
	CategoryInvariant
)

func (c Category) String() string {
	switch c {
	case CategoryCorruption:
		return "corruption"
	case CategoryResource:
		return "resource"
	case CategoryDecoder:
		return "decoder"
	case CategoryInvariant:
		return "invariant"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Standard error types for streaming decoding.
var (
	ErrCorrupt             = errors.New("corrupt bitstream")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrUnsupported         = errors.New("unsupported feature")
	ErrAborted             = errors.New("decoding aborted")
	ErrUnknownStatus       = errors.New("unknown engine status")
	ErrInvalidSize         = errors.New("invalid image size")
	ErrGeometryMismatch    = errors.New("engine changed frame geometry")
	ErrBadStride           = errors.New("row stride smaller than row width")
	ErrShortBuffer         = errors.New("engine pixel buffer too short")
	ErrMultipleFrames      = errors.New("more than one frame")
	ErrTruncated           = errors.New("image data ended before the first frame")
	ErrScalerInit          = errors.New("downscaler initialization failed")
	ErrFrameBuffer         = errors.New("host refused frame buffer")
	ErrEngineInit          = errors.New("engine initialization failed")
	ErrInvalidTargetSize   = errors.New("target size must be positive")
	ErrTargetSizeAfterFeed = errors.New("target size set after decoding started")
	ErrUnknownFormat       = errors.New("unknown image format")
)

// DecodeError is the error posted to the host when a session fails.
type DecodeError struct {
	Kind     ErrorKind
	Category Category
	// Status is the engine status that caused the error, or StatusOK for
	// errors detected by the session itself.
	Status Status
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Status != StatusOK {
		return fmt.Sprintf("%s (%s, %s): %v", e.Kind, e.Category, e.Status, e.Err)
	}

	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Category, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AsDecodeError checks if an error is a DecodeError and returns it.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}

	return nil, false
}

// IsDataError reports whether err is a DataError.
func IsDataError(err error) bool {
	de, ok := AsDecodeError(err)

	return ok && de.Kind == KindData
}

// IsDecoderError reports whether err is a DecoderError.
func IsDecoderError(err error) bool {
	de, ok := AsDecodeError(err)

	return ok && de.Kind == KindDecoder
}

func dataError(err error) *DecodeError {
	return &DecodeError{Kind: KindData, Category: CategoryCorruption, Err: err}
}

func decoderError(c Category, err error) *DecodeError {
	return &DecodeError{Kind: KindDecoder, Category: c, Err: err}
}

// statusError maps an engine status to the error surfaced to the host.
// It returns nil for StatusOK and StatusSuspended.
func statusError(s Status) *DecodeError {
	switch s {
	case StatusOK, StatusSuspended:
		return nil
	case StatusBitstreamError, StatusInvalidParam:
		return &DecodeError{Kind: KindData, Category: CategoryCorruption, Status: s, Err: ErrCorrupt}
	case StatusOutOfMemory:
		return &DecodeError{Kind: KindDecoder, Category: CategoryResource, Status: s, Err: ErrOutOfMemory}
	case StatusUnsupportedFeature:
		return &DecodeError{Kind: KindDecoder, Category: CategoryDecoder, Status: s, Err: ErrUnsupported}
	case StatusUserAbort:
		return &DecodeError{Kind: KindDecoder, Category: CategoryDecoder, Status: s, Err: ErrAborted}
	default:
		return &DecodeError{Kind: KindDecoder, Category: CategoryDecoder, Status: s, Err: ErrUnknownStatus}
	}
}
