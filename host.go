package streamdec

import "image"

// Invalidation describes rows that became valid during one Feed call.
type Invalidation struct {
	// Source covers the transferred rows in frame coordinates.
	Source image.Rectangle
	// Output covers the completed rows of the destination surface. It equals
	// Source unless Scaled is set, in which case it comes from the Scaler
	// and may be empty.
	Output image.Rectangle
	Scaled bool
}

// Host receives the notifications of a Session and owns the destination surface.
//
// SizeKnown is called at most once. FrameBuffer is called at most once,
// after SizeKnown, and must return width*height*4 bytes. DataError and
// DecoderError are terminal: at most one of them is called per session.
type Host interface {
	SizeKnown(width, height int)
	HasTransparency()
	FrameBuffer(width, height int) ([]byte, error)
	Invalidate(inv Invalidation)
	FrameStop()
	DecodeDone()
	DataError(err error)
	DecoderError(err error)
}

// Canvas is a Host that allocates the destination surface and records
// every notification it receives.
type Canvas struct {
	size          image.Point
	surface       image.Point
	pix           []byte
	transparent   bool
	invalidations []Invalidation
	frameStops    int
	done          bool
	err           error
}

// SizeKnown records the frame size.
func (c *Canvas) SizeKnown(width, height int) {
	c.size = image.Pt(width, height)
}

// HasTransparency records that the image may have transparent pixels.
func (c *Canvas) HasTransparency() {
	c.transparent = true
}

// FrameBuffer allocates the destination surface.
func (c *Canvas) FrameBuffer(width, height int) ([]byte, error) {
	c.surface = image.Pt(width, height)
	c.pix = make([]byte, width*height*4)

	return c.pix, nil
}

// Invalidate records an invalidation.
func (c *Canvas) Invalidate(inv Invalidation) {
	c.invalidations = append(c.invalidations, inv)
}

// FrameStop records the end of the frame.
func (c *Canvas) FrameStop() {
	c.frameStops++
}

// DecodeDone records the successful end of decoding.
func (c *Canvas) DecodeDone() {
	c.done = true
}

// DataError records a data error.
func (c *Canvas) DataError(err error) {
	c.err = err
}

// DecoderError records a decoder error.
func (c *Canvas) DecoderError(err error) {
	c.err = err
}

// Size returns the frame size, or the zero point if it is not known yet.
func (c *Canvas) Size() image.Point {
	return c.size
}

// Transparent reports whether HasTransparency was called.
func (c *Canvas) Transparent() bool {
	return c.transparent
}

// Invalidations returns the recorded invalidations in order.
func (c *Canvas) Invalidations() []Invalidation {
	return c.invalidations
}

// Valid returns the union of the output rectangles invalidated so far.
func (c *Canvas) Valid() image.Rectangle {
	var r image.Rectangle
	for _, inv := range c.invalidations {
		r = r.Union(inv.Output)
	}

	return r
}

// Done reports whether DecodeDone was called.
func (c *Canvas) Done() bool {
	return c.done
}

// Err returns the recorded error, if any.
func (c *Canvas) Err() error {
	return c.err
}

// Image returns the destination surface, or nil if none was allocated.
// Pix holds pixels in the channel order of the session that filled it.
func (c *Canvas) Image() *image.RGBA {
	if c.pix == nil {
		return nil
	}

	return &image.RGBA{
		Pix:    c.pix,
		Stride: c.surface.X * 4,
		Rect:   image.Rect(0, 0, c.surface.X, c.surface.Y),
	}
}
