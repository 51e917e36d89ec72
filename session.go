package streamdec

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/google/uuid"
)

// ErrClosed is returned by Feed and Finish after Close.
var ErrClosed = errors.New("session closed")

// State is the lifecycle state of a Session.
type State int

const (
	StateCreated State = iota
	StateSizeKnown
	StateContextReady
	StateDecoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateSizeKnown:
		return "SizeKnown"
	case StateContextReady:
		return "ContextReady"
	case StateDecoding:
		return "Decoding"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cursor tracks how far the engine output has been transferred.
type Cursor struct {
	// LastRowConsumed is the last source row written to the surface, or -1.
	LastRowConsumed int
	// RowStridePadding is the number of bytes after each engine row.
	RowStridePadding int
	ContextReady     bool
}

// Geometry is the frame geometry published by the engine.
type Geometry struct {
	Width, Height, Stride int
}

// Session drives one Engine over one image stream and copies the decoded
// rows to the surface of a Host.
//
// A Session is not safe for concurrent use.
type Session struct {
	id        string
	factory   EngineFactory
	host      Host
	log       *slog.Logger
	order     ChannelOrder
	target    image.Point
	sizeOnly  bool
	newScaler func(image.Point) Scaler

	engine  Engine
	scaler  Scaler
	surface []byte
	sink    rowSink

	state     State
	err       error
	cursor    Cursor
	geom      Geometry
	sizeKnown bool
	frames    int
	fed       bool
	closed    bool
	stats     Stats
}

// NewSession returns a session that creates its engine with f on the first
// Feed and reports to host. A nil opts uses the defaults.
func NewSession(f EngineFactory, host Host, opts *Options) (*Session, error) {
	if f == nil || host == nil {
		return nil, errors.New("streamdec: nil engine factory or host")
	}

	if opts == nil {
		opts = &Options{}
	}

	order := opts.Order.normalize()
	if !order.Valid() {
		return nil, fmt.Errorf("streamdec: invalid channel order %v", [4]uint8(order))
	}

	s := &Session{
		id:        uuid.New().String(),
		factory:   f,
		host:      host,
		order:     order,
		sizeOnly:  opts.SizeOnly,
		newScaler: opts.NewScaler,
		cursor:    Cursor{LastRowConsumed: -1},
	}

	if s.newScaler == nil {
		s.newScaler = func(p image.Point) Scaler { return NewDownscaler(p) }
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.log = logger.With("session", s.id)

	if opts.TargetSize != (image.Point{}) {
		if err := s.SetTargetSize(opts.TargetSize.X, opts.TargetSize.Y); err != nil {
			return nil, err
		}
	}

	s.log.Debug("streamdec: session created", "order", order, "size_only", s.sizeOnly)

	return s, nil
}

// ID returns the session identifier used in log records.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.err
}

// Cursor returns the transfer cursor.
func (s *Session) Cursor() Cursor {
	return s.cursor
}

// Geometry returns the published frame geometry and whether it is known.
func (s *Session) Geometry() (Geometry, bool) {
	return s.geom, s.sizeKnown
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// SetTargetSize requests the surface to be width x height, downscaling
// the frame to fit. It must be called before the first Feed.
func (s *Session) SetTargetSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTargetSize, width, height)
	}

	if s.fed {
		return ErrTargetSizeAfterFeed
	}

	s.target = image.Pt(width, height)

	return nil
}

// Write feeds p to the session. It implements io.Writer.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.Feed(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Feed passes the next chunk of the stream to the engine and transfers any
// rows it completed. Feeding a failed session returns its error without
// reporting it again; feeding a finished session is a no-op.
func (s *Session) Feed(p []byte) error {
	if s.closed {
		return ErrClosed
	}

	switch s.state {
	case StateFailed:
		return s.err
	case StateDone:
		return nil
	}

	s.fed = true

	if s.engine == nil {
		e, err := s.factory(ModePremultipliedRGBA)
		if err != nil {
			return s.fail(decoderError(CategoryDecoder, fmt.Errorf("%w: %w", ErrEngineInit, err)))
		}

		s.engine = e
		s.log.Debug("streamdec: engine created", "mode", ModePremultipliedRGBA)
	}

	s.stats.Feeds++
	s.stats.BytesFed += int64(len(p))

	if de := statusError(s.engine.Append(p)); de != nil {
		return s.fail(de)
	}

	return s.reconcile(s.engine.Progress())
}

// reconcile compares the engine progress with the cursor and transfers new rows.
func (s *Session) reconcile(pr Progress) error {
	if pr.LastRow < 0 || pr.Pix == nil {
		return nil
	}

	if pr.Frame >= s.frames {
		s.frames = pr.Frame + 1
	}

	if s.frames > 1 {
		return s.fail(decoderError(CategoryInvariant, fmt.Errorf("%w: frame %d", ErrMultipleFrames, pr.Frame)))
	}

	if !s.sizeKnown {
		if pr.Width <= 0 || pr.Height <= 0 {
			return s.fail(dataError(fmt.Errorf("%w: %dx%d", ErrInvalidSize, pr.Width, pr.Height)))
		}

		s.geom = Geometry{Width: pr.Width, Height: pr.Height, Stride: pr.Stride}
		s.sizeKnown = true
		s.state = StateSizeKnown
		s.host.SizeKnown(pr.Width, pr.Height)
		s.log.Debug("streamdec: size known", "width", pr.Width, "height", pr.Height)

		if s.sizeOnly {
			s.state = StateDone

			return nil
		}
	}

	if pr.Width != s.geom.Width || pr.Height != s.geom.Height || pr.Stride != s.geom.Stride {
		return s.fail(decoderError(CategoryInvariant, fmt.Errorf("%w: %dx%d stride %d, was %dx%d stride %d",
			ErrGeometryMismatch, pr.Width, pr.Height, pr.Stride, s.geom.Width, s.geom.Height, s.geom.Stride)))
	}

	if !s.cursor.ContextReady {
		if err := s.setupContext(pr); err != nil {
			return err
		}
	}

	last := pr.LastRow
	if last <= s.cursor.LastRowConsumed {
		return nil
	}

	h := s.geom.Height
	if last >= h {
		if s.cursor.LastRowConsumed == h-1 {
			return nil
		}

		last = h - 1
	}

	if need := last*s.rowStride() + s.geom.Width*4; len(pr.Pix) < need {
		return s.fail(decoderError(CategoryInvariant, fmt.Errorf("%w: %d bytes for row %d, need %d",
			ErrShortBuffer, len(pr.Pix), last, need)))
	}

	s.transfer(pr, last)

	return nil
}

// rowStride returns the engine row stride fixed when the size was published.
func (s *Session) rowStride() int {
	return s.geom.Width*4 + s.cursor.RowStridePadding
}

// setupContext runs once, the first time the engine has pixels for the frame.
func (s *Session) setupContext(pr Progress) error {
	w, h := s.geom.Width, s.geom.Height

	padding := s.geom.Stride - w*4
	if padding < 0 {
		return s.fail(decoderError(CategoryInvariant, fmt.Errorf("%w: stride %d, width %d", ErrBadStride, s.geom.Stride, w)))
	}

	s.host.HasTransparency()

	surface := image.Pt(w, h)
	scaled := s.target != image.Point{} && s.target != surface
	if scaled {
		surface = s.target
	}

	buf, err := s.host.FrameBuffer(surface.X, surface.Y)
	if err != nil {
		return s.fail(decoderError(CategoryResource, fmt.Errorf("%w: %w", ErrFrameBuffer, err)))
	}

	if len(buf) < surface.X*surface.Y*4 {
		return s.fail(decoderError(CategoryInvariant, fmt.Errorf("%w: %d bytes for %dx%d",
			ErrFrameBuffer, len(buf), surface.X, surface.Y)))
	}

	s.surface = buf

	if scaled {
		sc := s.newScaler(s.target)
		if err := sc.BeginFrame(image.Pt(w, h), buf, true); err != nil {
			return s.fail(decoderError(CategoryDecoder, fmt.Errorf("%w: %w", ErrScalerInit, err)))
		}

		s.scaler = sc
		s.sink = &scalerSink{scaler: sc}
	} else {
		s.sink = &directSink{surface: buf, width: w}
	}

	s.cursor.RowStridePadding = padding
	s.cursor.ContextReady = true
	s.state = StateContextReady

	s.log.Debug("streamdec: context ready", "surface", surface, "scaled", scaled, "padding", padding)

	return nil
}

// fail moves the session to the failed state and reports err to the host.
func (s *Session) fail(de *DecodeError) error {
	s.state = StateFailed
	s.err = de

	if de.Kind == KindData {
		s.log.Warn("streamdec: data error", "error", de, "rows", s.cursor.LastRowConsumed+1)
		s.host.DataError(de)
	} else {
		s.log.Error("streamdec: decoder error", "error", de)
		s.host.DecoderError(de)
	}

	return de
}

// Finish ends the stream. A session whose frame has pixels reports
// FrameStop and DecodeDone. Finish does not release the engine.
func (s *Session) Finish() error {
	if s.closed {
		return ErrClosed
	}

	switch {
	case s.state == StateFailed:
		return s.err
	case s.sizeOnly:
		if !s.sizeKnown {
			return s.fail(dataError(ErrTruncated))
		}

		s.state = StateDone

		return nil
	case s.state == StateDone:
		return nil
	case !s.cursor.ContextReady:
		return s.fail(dataError(ErrTruncated))
	}

	s.host.FrameStop()
	s.host.DecodeDone()
	s.state = StateDone

	s.log.Debug("streamdec: decode done", "rows", s.cursor.LastRowConsumed+1, "bytes", s.stats.BytesFed)

	return nil
}

// Close releases the engine. It is safe to call more than once and in any state.
func (s *Session) Close() {
	if s.closed {
		return
	}

	s.closed = true

	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}

	s.surface = nil
	s.sink = nil
	s.scaler = nil

	s.log.Debug("streamdec: session destroyed", "state", s.state)
}
