package jpeg

// Bitstream handling

// fill loads entropy-coded bytes into the bit buffer until it holds at
// least n bits, a marker is reached or the buffered input runs out.
// A 0xFF at the end of the input is left unread until the following byte
// arrives, since it may start a marker.
func (d *Decoder) fill(n int) {
	for d.bufBits < n && d.bufBits <= 56 && !d.markerHit {
		if d.pos >= len(d.data) {
			return
		}

		b := d.data[d.pos]
		if b == 0xFF {
			if d.pos+1 >= len(d.data) {
				return
			}

			if d.data[d.pos+1] != 0x00 {
				// End of the entropy-coded segment. The marker stays unread.
				d.markerHit = true

				return
			}

			// Stuffed 0xFF00.
			d.pos += 2
		} else {
			d.pos++
		}

		d.buf = d.buf<<8 | uint64(b)
		d.bufBits += 8
	}
}

// showBits returns the next n (at most 16) bits without consuming them.
// Past a marker the stream is padded with 1 bits; before one, running out
// of input unwinds to the last checkpoint.
func (d *Decoder) showBits(n int) int {
	if d.bufBits < n {
		d.fill(n)

		if d.bufBits < n {
			if !d.markerHit {
				d.panic(errNeedData)
			}

			shift := uint(n - d.bufBits)

			return int((d.buf<<shift | (1<<shift - 1)) & (1<<uint(n) - 1))
		}
	}

	return int(d.buf >> uint(d.bufBits-n) & (1<<uint(n) - 1))
}

// skipBits consumes n bits.
func (d *Decoder) skipBits(n int) {
	if d.bufBits < n {
		d.fill(n)

		if d.bufBits < n {
			if !d.markerHit {
				d.panic(errNeedData)
			}

			d.bufBits = 0

			return
		}
	}

	d.bufBits -= n
}

// getBits reads and consumes n bits.
func (d *Decoder) getBits(n int) int {
	v := d.showBits(n)
	d.skipBits(n)

	return v
}

// getVLC decodes one Huffman symbol and the value bits following it.
// The symbol is stored in code if code is not nil.
func (d *Decoder) getVLC(vlc *[65536]vlcCode, code *uint8) int {
	entry := vlc[d.showBits(16)]
	if entry.bits == 0 {
		d.panic(ErrSyntax) // Invalid Huffman code.
	}

	if code != nil {
		*code = entry.code
	}

	d.skipBits(int(entry.bits))

	valBits := int(entry.code & 15)
	if valBits == 0 {
		return 0
	}

	value := d.getBits(valBits)

	// Sign extension.
	if value < 1<<(valBits-1) {
		value += -1<<valBits + 1
	}

	return value
}

// readRestart consumes the expected RSTn marker at a restart boundary.
func (d *Decoder) readRestart() {
	// Remaining bits up to the marker are padding.
	d.buf, d.bufBits, d.markerHit = 0, 0, false

	for {
		if d.avail() < 2 {
			d.panic(errNeedData)
		}

		if d.data[d.pos] == 0xFF && d.data[d.pos+1] == 0xFF {
			d.pos++ // Fill byte.

			continue
		}

		break
	}

	m := d.data[d.pos+1]
	if d.data[d.pos] != 0xFF || m&0xF8 != 0xD0 || int(m&7) != d.nextRst {
		d.panic(ErrSyntax)
	}

	d.pos += 2
	d.nextRst = (d.nextRst + 1) & 7
	d.rstCount = d.rstInterval

	for i := 0; i < d.ncomp; i++ {
		d.comp[i].dcPred = 0
	}
}
