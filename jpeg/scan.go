package jpeg

// zz is the zigzag ordering table. It maps the 1D order of coefficients in
// the JPEG stream to their 2D position in an 8x8 block.
var zz = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10, 17, 24, 32, 25, 18,
	11, 4, 5, 12, 19, 26, 33, 40, 48, 41, 34, 27, 20, 13, 6, 7, 14, 21, 28, 35,
	42, 49, 56, 57, 50, 43, 36, 29, 22, 15, 23, 30, 37, 44, 51, 58, 59, 52, 45,
	38, 31, 39, 46, 53, 60, 61, 54, 47, 55, 62, 63,
}

// save records the state at the start of an MCU row.
func (d *Decoder) save() {
	d.saved = checkpoint{
		pos:       d.pos,
		buf:       d.buf,
		bufBits:   d.bufBits,
		markerHit: d.markerHit,
		rstCount:  d.rstCount,
		nextRst:   d.nextRst,
	}

	for i := 0; i < d.ncomp; i++ {
		d.saved.dcPred[i] = d.comp[i].dcPred
	}
}

// restore rewinds to the start of the current MCU row.
func (d *Decoder) restore() {
	cp := &d.saved
	d.pos = cp.pos
	d.buf = cp.buf
	d.bufBits = cp.bufBits
	d.markerHit = cp.markerHit
	d.rstCount = cp.rstCount
	d.nextRst = cp.nextRst

	for i := 0; i < d.ncomp; i++ {
		d.comp[i].dcPred = cp.dcPred[i]
	}
}

// decodeRows decodes MCU rows until the scan ends or the input runs out.
// An MCU row is either decoded completely or not at all.
// Handles panics from the hot path.
func (d *Decoder) decodeRows() (err error) {
	defer func() {
		if r := recover(); r != nil {
			de, ok := r.(errDecode)
			if !ok {
				// Propagate other panics (e.g., runtime errors).
				panic(r)
			}

			if de.error == errNeedData {
				d.restore()
			}

			err = de.error
		}
	}()

	for d.mby < d.mbHeight {
		d.save()
		d.decodeMCURow()
		d.convertRow()

		d.mby++
		d.rowsDone = min(d.height, d.mby*d.mbSizeY)
	}

	return nil
}

// decodeMCURow decodes one row of MCUs into the component planes.
func (d *Decoder) decodeMCURow() {
	for mbx := 0; mbx < d.mbWidth; mbx++ {
		for i := 0; i < d.ncomp; i++ {
			c := &d.comp[i]

			for sby := 0; sby < c.ssY; sby++ {
				for sbx := 0; sbx < c.ssX; sbx++ {
					offset := (sby<<3)*c.stride + (mbx*c.ssX+sbx)<<3

					d.decodeBlock(c, offset)
				}
			}
		}

		if d.rstInterval != 0 {
			d.rstCount--

			last := d.mby == d.mbHeight-1 && mbx == d.mbWidth-1
			if d.rstCount == 0 && !last {
				d.readRestart()
			}
		}
	}
}

// decodeBlock decodes a single 8x8 block of a component: entropy decoding
// of DC and AC coefficients, dequantization and the IDCT.
func (d *Decoder) decodeBlock(c *component, outOffset int) {
	var code uint8

	d.block = [64]int32{}

	qt := &d.qtab[c.qtSel]
	dcVLC := &d.vlc[c.dcTabSel]
	acVLC := &d.vlc[c.acTabSel+2]

	c.dcPred += d.getVLC(dcVLC, nil)
	d.block[0] = int32(c.dcPred) * int32(qt[0])

	for coef := 1; coef <= 63; {
		value := d.getVLC(acVLC, &code)

		if code == 0 { // EOB
			break
		}

		if code&0x0F == 0 {
			if code != 0xF0 { // ZRL
				d.panic(ErrSyntax)
			}

			coef += 16

			continue
		}

		coef += int(code >> 4)
		if coef > 63 {
			d.panic(ErrSyntax)
		}

		// Quantization tables are in zigzag order.
		d.block[zz[coef]] = int32(value) * int32(qt[coef])
		coef++
	}

	idct(&d.block, c.pixels, outOffset, c.stride)
}
