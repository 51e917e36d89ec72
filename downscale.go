package streamdec

import (
	"fmt"
	"image"
)

// Scaler resamples a frame row by row into a smaller destination surface.
//
// BeginFrame is called once per frame with the original frame size and the
// destination pixels (TargetSize().X * TargetSize().Y * 4 bytes). For every
// source row the caller fills RowBuffer (original width * 4 bytes) and then
// calls CommitRow. TakeInvalidRect returns the destination rectangle
// completed since the previous call, in destination coordinates.
type Scaler interface {
	BeginFrame(original image.Point, dst []byte, hasAlpha bool) error
	RowBuffer() []byte
	CommitRow()
	TakeInvalidRect() image.Rectangle
	TargetSize() image.Point
}

// Downscaler is a box-filter Scaler. Each destination pixel is the rounded
// mean of the block of source pixels mapping onto it.
type Downscaler struct {
	target   image.Point
	original image.Point
	hasAlpha bool

	dst  []byte
	row  []byte
	acc  []uint32
	cols []int // cols[j] is the first source column of destination column j

	inRow        int
	outRow       int
	invalidStart int
}

// NewDownscaler returns a Downscaler producing images of the given size.
func NewDownscaler(target image.Point) *Downscaler {
	return &Downscaler{target: target}
}

// TargetSize returns the destination size.
func (s *Downscaler) TargetSize() image.Point {
	return s.target
}

// HasAlpha reports the alpha flag of the current frame.
func (s *Downscaler) HasAlpha() bool {
	return s.hasAlpha
}

// BeginFrame prepares the filter for a frame of the given size.
func (s *Downscaler) BeginFrame(original image.Point, dst []byte, hasAlpha bool) error {
	tw, th := s.target.X, s.target.Y
	if tw <= 0 || th <= 0 {
		return fmt.Errorf("downscale: invalid target size %dx%d", tw, th)
	}

	if original.X <= 0 || original.Y <= 0 {
		return fmt.Errorf("downscale: invalid frame size %dx%d", original.X, original.Y)
	}

	if tw > original.X || th > original.Y {
		return fmt.Errorf("downscale: cannot scale %dx%d up to %dx%d", original.X, original.Y, tw, th)
	}

	if len(dst) < tw*th*4 {
		return fmt.Errorf("downscale: destination holds %d bytes, need %d", len(dst), tw*th*4)
	}

	s.original = original
	s.hasAlpha = hasAlpha
	s.dst = dst

	if cap(s.row) < original.X*4 {
		s.row = make([]byte, original.X*4)
	}
	s.row = s.row[:original.X*4]

	if cap(s.acc) < tw*4 {
		s.acc = make([]uint32, tw*4)
	}
	s.acc = s.acc[:tw*4]
	clear(s.acc)

	if cap(s.cols) < tw+1 {
		s.cols = make([]int, tw+1)
	}
	s.cols = s.cols[:tw+1]
	for j := range s.cols {
		s.cols[j] = j * original.X / tw
	}

	s.inRow = 0
	s.outRow = 0
	s.invalidStart = 0

	return nil
}

// RowBuffer returns the buffer for the next source row.
func (s *Downscaler) RowBuffer() []byte {
	return s.row
}

// CommitRow accumulates the row in RowBuffer. Rows past the frame height are ignored.
func (s *Downscaler) CommitRow() {
	if s.inRow >= s.original.Y {
		return
	}

	for j := 0; j < s.target.X; j++ {
		a := s.acc[j*4 : j*4+4 : j*4+4]
		for x := s.cols[j]; x < s.cols[j+1]; x++ {
			p := s.row[x*4 : x*4+4 : x*4+4]
			a[0] += uint32(p[0])
			a[1] += uint32(p[1])
			a[2] += uint32(p[2])
			a[3] += uint32(p[3])
		}
	}

	s.inRow++

	start := s.outRow * s.original.Y / s.target.Y
	end := (s.outRow + 1) * s.original.Y / s.target.Y
	if s.inRow < end {
		return
	}

	rows := uint32(end - start)
	out := s.dst[s.outRow*s.target.X*4:]
	for j := 0; j < s.target.X; j++ {
		n := rows * uint32(s.cols[j+1]-s.cols[j])
		a := s.acc[j*4 : j*4+4 : j*4+4]
		d := out[j*4 : j*4+4 : j*4+4]
		d[0] = byte((a[0] + n/2) / n)
		d[1] = byte((a[1] + n/2) / n)
		d[2] = byte((a[2] + n/2) / n)
		d[3] = byte((a[3] + n/2) / n)
	}

	clear(s.acc)
	s.outRow++
}

// TakeInvalidRect returns the destination rows completed since the last call.
func (s *Downscaler) TakeInvalidRect() image.Rectangle {
	r := image.Rect(0, s.invalidStart, s.target.X, s.outRow)
	s.invalidStart = s.outRow

	return r
}
