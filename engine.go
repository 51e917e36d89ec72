package streamdec

import "fmt"

// Status is the result of feeding bytes to an Engine.
type Status int

const (
	// StatusOK means the engine consumed the input and finished the image.
	StatusOK Status = iota
	// StatusOutOfMemory means the engine could not allocate its buffers.
	StatusOutOfMemory
	// StatusInvalidParam means the engine rejected its input parameters.
	StatusInvalidParam
	// StatusBitstreamError means the compressed data is corrupt.
	StatusBitstreamError
	// StatusUnsupportedFeature means the bitstream uses a feature the engine lacks.
	StatusUnsupportedFeature
	// StatusSuspended means the engine needs more data.
	StatusSuspended
	// StatusUserAbort means decoding was aborted.
	StatusUserAbort
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusOutOfMemory:
		return "OutOfMemory"
	case StatusInvalidParam:
		return "InvalidParam"
	case StatusBitstreamError:
		return "BitstreamError"
	case StatusUnsupportedFeature:
		return "UnsupportedFeature"
	case StatusSuspended:
		return "Suspended"
	case StatusUserAbort:
		return "UserAbort"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// OutputMode selects the pixel layout an engine produces.
type OutputMode int

const (
	// ModePremultipliedRGBA is 4 bytes per pixel, R G B A, color premultiplied by alpha.
	ModePremultipliedRGBA OutputMode = iota
	// ModeRGBA is 4 bytes per pixel, R G B A, straight alpha.
	ModeRGBA
)

func (m OutputMode) String() string {
	switch m {
	case ModePremultipliedRGBA:
		return "rgbA"
	case ModeRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// Progress is an engine's view of how much of the frame is decoded.
type Progress struct {
	// LastRow is the index of the last fully decoded row, or -1 if none.
	LastRow int
	// Width and Height are the frame dimensions as known to the engine.
	Width, Height int
	// Stride is the distance in bytes between the starts of two rows of Pix.
	Stride int
	// Pix holds the decoded rows. It is nil until the engine has pixels.
	Pix []byte
	// Frame is the zero-based index of the frame the rows belong to.
	Frame int
}

// NoProgress is reported by engines that have not produced any rows yet.
var NoProgress = Progress{LastRow: -1}

// Engine decodes a compressed bitstream that arrives in pieces.
//
// Append consumes the next piece of input; it may be called with an empty
// slice. Progress reports the rows decoded so far; rows it has reported
// stay valid until Close. Close releases the engine and is safe to call
// more than once.
type Engine interface {
	Append(p []byte) Status
	Progress() Progress
	Close()
}

// EngineFactory creates an engine producing pixels in the given mode.
type EngineFactory func(mode OutputMode) (Engine, error)
