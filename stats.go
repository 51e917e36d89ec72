package streamdec

// Stats counts the work done by a session.
type Stats struct {
	Feeds         int // Feed calls that reached the engine
	BytesFed      int64
	Rows          int // source rows transferred
	Invalidations int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Feeds += o.Feeds
	s.BytesFed += o.BytesFed
	s.Rows += o.Rows
	s.Invalidations += o.Invalidations
}
