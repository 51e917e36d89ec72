package streamdec

import "image"

// rowSink receives converted source rows in order.
type rowSink interface {
	// row returns the buffer for source row y.
	row(y int) []byte
	// commit marks the buffer returned by row as filled.
	commit()
}

// directSink writes rows straight into the surface.
type directSink struct {
	surface []byte
	width   int
}

func (d *directSink) row(y int) []byte {
	return d.surface[y*d.width*4 : (y+1)*d.width*4]
}

func (d *directSink) commit() {}

// scalerSink passes rows through a Scaler.
type scalerSink struct {
	scaler Scaler
}

func (s *scalerSink) row(int) []byte {
	return s.scaler.RowBuffer()
}

func (s *scalerSink) commit() {
	s.scaler.CommitRow()
}

// transfer converts rows (LastRowConsumed, last] into the sink and emits
// one invalidation covering them.
func (s *Session) transfer(pr Progress, last int) {
	w := s.geom.Width
	stride := s.rowStride()
	first := s.cursor.LastRowConsumed + 1

	for y := first; y <= last; y++ {
		src := pr.Pix[y*stride:]
		swizzleRow(s.sink.row(y), src, w, s.order)
		s.sink.commit()
	}

	inv := Invalidation{Source: image.Rect(0, first, w, last+1)}
	if s.scaler != nil {
		inv.Output = s.scaler.TakeInvalidRect()
		inv.Scaled = true
	} else {
		inv.Output = inv.Source
	}

	s.host.Invalidate(inv)

	s.state = StateDecoding
	s.cursor.LastRowConsumed = last
	s.stats.Rows += last - first + 1
	s.stats.Invalidations++

	s.log.Debug("streamdec: rows transferred", "first", first, "last", last, "output", inv.Output)
}
