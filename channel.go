package streamdec

import (
	"fmt"
	"strings"
)

// ChannelOrder describes the byte layout of a destination pixel in terms of
// the engine's R G B A layout: destination byte i is source byte o[i].
//
// The zero value is treated as OrderRGBA.
type ChannelOrder [4]uint8

// Predefined channel orders.
var (
	OrderRGBA = ChannelOrder{0, 1, 2, 3}
	OrderBGRA = ChannelOrder{2, 1, 0, 3}
	OrderARGB = ChannelOrder{3, 0, 1, 2}
	OrderABGR = ChannelOrder{3, 2, 1, 0}
)

const channelNames = "RGBA"

// Valid reports whether o is a permutation of the four source channels.
func (o ChannelOrder) Valid() bool {
	var seen [4]bool
	for _, c := range o {
		if c > 3 || seen[c] {
			return false
		}

		seen[c] = true
	}

	return true
}

// normalize maps the zero value to OrderRGBA.
func (o ChannelOrder) normalize() ChannelOrder {
	if o == (ChannelOrder{}) {
		return OrderRGBA
	}

	return o
}

// AlphaIndex returns the destination byte holding alpha.
func (o ChannelOrder) AlphaIndex() int {
	o = o.normalize()
	for i, c := range o {
		if c == 3 {
			return i
		}
	}

	return -1
}

func (o ChannelOrder) String() string {
	o = o.normalize()
	if !o.Valid() {
		return fmt.Sprintf("ChannelOrder%v", [4]uint8(o))
	}

	var b strings.Builder
	for _, c := range o {
		b.WriteByte(channelNames[c])
	}

	return b.String()
}

// ParseChannelOrder parses a four letter order such as "BGRA".
func ParseChannelOrder(s string) (ChannelOrder, error) {
	var o ChannelOrder
	if len(s) != 4 {
		return o, fmt.Errorf("channel order %q: want 4 channels", s)
	}

	for i := 0; i < 4; i++ {
		c := strings.IndexByte(channelNames, s[i]&^0x20)
		if c < 0 {
			return o, fmt.Errorf("channel order %q: unknown channel %q", s, s[i])
		}

		o[i] = uint8(c)
	}

	if !o.Valid() {
		return o, fmt.Errorf("channel order %q: repeated channel", s)
	}

	return o, nil
}

// swizzleRow permutes width pixels from src into dst.
func swizzleRow(dst, src []byte, width int, o ChannelOrder) {
	n := width * 4
	src = src[:n]
	dst = dst[:n]

	switch o {
	case OrderRGBA:
		copy(dst, src)
	case OrderBGRA:
		for i := 0; i < n; i += 4 {
			s := src[i : i+4 : i+4]
			d := dst[i : i+4 : i+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
		}
	default:
		o0, o1, o2, o3 := o[0], o[1], o[2], o[3]
		for i := 0; i < n; i += 4 {
			s := src[i : i+4 : i+4]
			d := dst[i : i+4 : i+4]
			d[0], d[1], d[2], d[3] = s[o0], s[o1], s[o2], s[o3]
		}
	}
}
