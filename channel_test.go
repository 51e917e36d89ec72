package streamdec

import (
	"bytes"
	"testing"
)

func TestParseChannelOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelOrder
		wantErr bool
	}{
		{"RGBA", OrderRGBA, false},
		{"bgra", OrderBGRA, false},
		{"ArGb", OrderARGB, false},
		{"ABGR", OrderABGR, false},
		{"GBAR", ChannelOrder{1, 2, 3, 0}, false},
		{"RGB", ChannelOrder{}, true},
		{"RGBX", ChannelOrder{}, true},
		{"RRGB", ChannelOrder{}, true},
		{"RGBAA", ChannelOrder{}, true},
	}

	for _, tc := range tests {
		got, err := ParseChannelOrder(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseChannelOrder(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)

			continue
		}

		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseChannelOrder(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestChannelOrder(t *testing.T) {
	tests := []struct {
		order ChannelOrder
		str   string
		alpha int
		valid bool
	}{
		{ChannelOrder{}, "RGBA", 3, true},
		{OrderRGBA, "RGBA", 3, true},
		{OrderBGRA, "BGRA", 3, true},
		{OrderARGB, "ARGB", 0, true},
		{OrderABGR, "ABGR", 0, true},
		{ChannelOrder{0, 1, 1, 3}, "ChannelOrder[0 1 1 3]", 3, false},
		{ChannelOrder{0, 1, 2, 4}, "ChannelOrder[0 1 2 4]", -1, false},
	}

	for _, tc := range tests {
		if got := tc.order.String(); got != tc.str {
			t.Errorf("%v.String() = %q, want %q", [4]uint8(tc.order), got, tc.str)
		}

		if got := tc.order.AlphaIndex(); got != tc.alpha {
			t.Errorf("%v.AlphaIndex() = %d, want %d", [4]uint8(tc.order), got, tc.alpha)
		}

		if got := tc.order.normalize().Valid(); got != tc.valid {
			t.Errorf("%v.Valid() = %v, want %v", [4]uint8(tc.order), got, tc.valid)
		}
	}
}

func TestSwizzleRow(t *testing.T) {
	src := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12, // not part of the row
	}

	tests := []struct {
		order ChannelOrder
		want  []byte
	}{
		{OrderRGBA, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{OrderBGRA, []byte{3, 2, 1, 4, 7, 6, 5, 8}},
		{OrderARGB, []byte{4, 1, 2, 3, 8, 5, 6, 7}},
		{OrderABGR, []byte{4, 3, 2, 1, 8, 7, 6, 5}},
		{ChannelOrder{1, 2, 3, 0}, []byte{2, 3, 4, 1, 6, 7, 8, 5}},
	}

	for _, tc := range tests {
		dst := make([]byte, 12)
		swizzleRow(dst, src, 2, tc.order)

		if !bytes.Equal(dst[:8], tc.want) {
			t.Errorf("%v: got %v, want %v", tc.order, dst[:8], tc.want)
		}

		if !bytes.Equal(dst[8:], []byte{0, 0, 0, 0}) {
			t.Errorf("%v: wrote past the row: %v", tc.order, dst[8:])
		}
	}
}

func BenchmarkSwizzleRow(b *testing.B) {
	const width = 1920
	src := make([]byte, width*4)
	dst := make([]byte, width*4)

	for _, o := range []ChannelOrder{OrderRGBA, OrderBGRA, OrderARGB} {
		b.Run(o.String(), func(b *testing.B) {
			b.SetBytes(width * 4)
			for i := 0; i < b.N; i++ {
				swizzleRow(dst, src, width, o)
			}
		})
	}
}
