package streamdec

import "testing"

func TestStatsAdd(t *testing.T) {
	var total Stats

	for _, chunk := range []int{5, 1 << 10} {
		s := newSession(t, rawFactory(nil), &Canvas{}, nil)
		feedChunks(t, s, rawImage(3, 2), chunk)
		if err := s.Finish(); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		total.Add(s.Stats())
		s.Close()
	}

	// 30 bytes in chunks of 5, then in one chunk.
	want := Stats{Feeds: 7, BytesFed: 60, Rows: 4}
	if total.Feeds != want.Feeds || total.BytesFed != want.BytesFed || total.Rows != want.Rows {
		t.Errorf("total = %+v, want %+v", total, want)
	}

	if total.Invalidations < 2 || total.Invalidations > total.Feeds {
		t.Errorf("Invalidations = %d", total.Invalidations)
	}
}
