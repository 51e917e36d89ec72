package streamdec

import (
	"image"
	"testing"
)

// fill commits rows of a w x h frame where every channel of row y, column x is f(x, y).
func fill(s *Downscaler, w, from, to int, f func(x, y int) byte) {
	for y := from; y < to; y++ {
		row := s.RowBuffer()
		for x := 0; x < w; x++ {
			v := f(x, y)
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = v, v, v, v
		}
		s.CommitRow()
	}
}

func TestDownscalerBoxMean(t *testing.T) {
	s := NewDownscaler(image.Pt(2, 2))
	dst := make([]byte, 2*2*4)

	if err := s.BeginFrame(image.Pt(4, 4), dst, true); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}

	// Blocks of 2x2: top-left holds 0, 10, 20, 30 so the mean is 15.
	fill(s, 4, 0, 4, func(x, y int) byte { return byte(x*10 + y*20) })

	want := []byte{15, 35, 55, 75}
	for i, v := range want {
		if got := dst[i*4]; got != v {
			t.Errorf("pixel %d = %d, want %d", i, got, v)
		}
	}

	if !s.HasAlpha() || s.TargetSize() != image.Pt(2, 2) {
		t.Errorf("HasAlpha = %v, TargetSize = %v", s.HasAlpha(), s.TargetSize())
	}
}

func TestDownscalerRounding(t *testing.T) {
	s := NewDownscaler(image.Pt(1, 1))
	dst := make([]byte, 4)

	if err := s.BeginFrame(image.Pt(2, 1), dst, false); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}

	fill(s, 2, 0, 1, func(x, _ int) byte { return byte(x) })

	if dst[0] != 1 {
		t.Errorf("mean of 0 and 1 = %d, want 1", dst[0])
	}
}

func TestDownscalerInvalidRects(t *testing.T) {
	// 7 source rows onto 3 destination rows: [0,2) [2,4) [4,7).
	s := NewDownscaler(image.Pt(2, 3))
	dst := make([]byte, 2*3*4)

	if err := s.BeginFrame(image.Pt(5, 7), dst, true); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}

	steps := []struct {
		rows int
		want image.Rectangle
	}{
		{1, image.Rectangle{}},
		{2, image.Rect(0, 0, 2, 1)},
		{3, image.Rectangle{}},
		{5, image.Rect(0, 1, 2, 2)},
		{7, image.Rect(0, 2, 2, 3)},
		{9, image.Rectangle{}},
	}

	done := 0
	for _, st := range steps {
		fill(s, 5, done, st.rows, func(x, y int) byte { return byte(y) })
		done = st.rows

		got := s.TakeInvalidRect()
		if got.Empty() != st.want.Empty() || (!got.Empty() && got != st.want) {
			t.Errorf("after %d rows: invalid rect %v, want %v", st.rows, got, st.want)
		}
	}

	// Rows 4, 5 and 6 average to 5.
	if dst[2*2*4] != 5 {
		t.Errorf("last row value = %d, want 5", dst[2*2*4])
	}
}

func TestDownscalerBeginFrameErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   image.Point
		original image.Point
		dst      int
	}{
		{"zero target", image.Pt(0, 2), image.Pt(4, 4), 64},
		{"zero frame", image.Pt(2, 2), image.Pt(4, 0), 64},
		{"upscale", image.Pt(8, 2), image.Pt(4, 4), 64},
		{"short destination", image.Pt(2, 2), image.Pt(4, 4), 15},
	}

	for _, tc := range tests {
		s := NewDownscaler(tc.target)
		if err := s.BeginFrame(tc.original, make([]byte, tc.dst), true); err == nil {
			t.Errorf("%s: BeginFrame succeeded", tc.name)
		}
	}
}

func TestDownscalerReuse(t *testing.T) {
	s := NewDownscaler(image.Pt(1, 1))
	dst := make([]byte, 4)

	for _, v := range []byte{40, 80} {
		if err := s.BeginFrame(image.Pt(3, 3), dst, true); err != nil {
			t.Fatalf("BeginFrame failed: %v", err)
		}

		fill(s, 3, 0, 3, func(_, _ int) byte { return v })

		if dst[0] != v {
			t.Errorf("frame value = %d, want %d", dst[0], v)
		}

		if r := s.TakeInvalidRect(); r != image.Rect(0, 0, 1, 1) {
			t.Errorf("invalid rect = %v, want the whole surface", r)
		}
	}
}
